package extract

import (
	"testing"

	"github.com/Sternrassler/gqlfetch/pkg/record"
)

func mustParse(t *testing.T, raw string) any {
	t.Helper()
	v, err := record.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return v
}

const teamResponse = `{
  "team": {
    "id": "t1",
    "issues": {
      "nodes": [
        {"identifier": "ENG-1", "title": "one"},
        {"identifier": "ENG-2", "title": "two"},
        "not-an-object"
      ],
      "pageInfo": {"hasNextPage": true, "endCursor": "c2"}
    }
  },
  "organization": {
    "repositories": {
      "edges": [{"node": {"name": "api"}}, {"cursor": "x"}, {"node": {"name": "web"}}]
    }
  }
}`

func TestGet(t *testing.T) {
	resp := mustParse(t, teamResponse)

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{"nested scalar", "team.id", "t1", true},
		{"sequence index", "team.issues.nodes.1.identifier", "ENG-2", true},
		{"missing key", "team.missing", nil, false},
		{"index out of range", "team.issues.nodes.9", nil, false},
		{"non-numeric index", "team.issues.nodes.first", nil, false},
		{"through scalar", "team.id.deeper", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Get(resp, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGet_PlainMaps(t *testing.T) {
	resp := map[string]any{"a": map[string]any{"b": []any{"x", "y"}}}
	got, ok := Get(resp, "a.b.1")
	if !ok || got != "y" {
		t.Errorf("Get(a.b.1) = %v, %v; want y, true", got, ok)
	}
}

func TestPageInfoAt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
		want *PageInfo
	}{
		{
			name: "partial fields default to zero",
			raw:  `{"c": {"pageInfo": {"hasNextPage": true, "endCursor": "abc"}}}`,
			path: "c.pageInfo",
			want: &PageInfo{HasNextPage: true, EndCursor: "abc"},
		},
		{
			name: "all fields",
			raw:  `{"c": {"pageInfo": {"hasNextPage": false, "hasPreviousPage": true, "startCursor": "s", "endCursor": "e"}}}`,
			path: "c.pageInfo",
			want: &PageInfo{HasPreviousPage: true, StartCursor: "s", EndCursor: "e"},
		},
		{
			name: "null cursor is absent",
			raw:  `{"c": {"pageInfo": {"hasNextPage": false, "endCursor": null}}}`,
			path: "c.pageInfo",
			want: &PageInfo{},
		},
		{name: "missing path", raw: `{"c": {}}`, path: "c.pageInfo", want: nil},
		{name: "no page info fields", raw: `{"c": {"pageInfo": {"total": 3}}}`, path: "c.pageInfo", want: nil},
		{name: "not an object", raw: `{"c": {"pageInfo": "nope"}}`, path: "c.pageInfo", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PageInfoAt(mustParse(t, tt.raw), tt.path)
			if tt.want == nil {
				if got != nil {
					t.Errorf("PageInfoAt() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("PageInfoAt() = nil, want page info")
			}
			if *got != *tt.want {
				t.Errorf("PageInfoAt() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestNodesAndEdges(t *testing.T) {
	resp := mustParse(t, teamResponse)

	nodes := Nodes(resp, "team.issues.nodes")
	if len(nodes) != 2 {
		t.Fatalf("Nodes() len = %d, want 2", len(nodes))
	}
	if nodes[0].String("identifier") != "ENG-1" {
		t.Errorf("nodes[0].identifier = %q, want ENG-1", nodes[0].String("identifier"))
	}

	if got := Nodes(resp, "team.nope.nodes"); got == nil || len(got) != 0 {
		t.Errorf("Nodes(missing) = %#v, want empty non-nil slice", got)
	}
	if got := Edges(resp, "team.id"); got == nil || len(got) != 0 {
		t.Errorf("Edges(scalar) = %#v, want empty non-nil slice", got)
	}

	repos := EdgeNodes(resp, "organization.repositories.edges")
	if len(repos) != 2 {
		t.Fatalf("EdgeNodes() len = %d, want 2", len(repos))
	}
	if repos[1].String("name") != "web" {
		t.Errorf("repos[1].name = %q, want web", repos[1].String("name"))
	}
}

func TestClosures(t *testing.T) {
	resp := mustParse(t, teamResponse)

	if got := len(Items("team.issues.nodes")(resp)); got != 2 {
		t.Errorf("Items() len = %d, want 2", got)
	}
	if got := len(EdgeItems("organization.repositories.edges")(resp)); got != 2 {
		t.Errorf("EdgeItems() len = %d, want 2", got)
	}
	info := PageInfoFunc("team.issues.pageInfo")(resp)
	if info == nil || info.EndCursor != "c2" {
		t.Errorf("PageInfoFunc() = %+v, want end cursor c2", info)
	}
}

func TestJQ(t *testing.T) {
	resp := mustParse(t, teamResponse)

	items, err := JQ(`.organization.repositories.edges[] | select(.node) | .node`)
	if err != nil {
		t.Fatalf("JQ() error = %v", err)
	}
	got := items(resp)
	if len(got) != 2 {
		t.Fatalf("items len = %d, want 2", len(got))
	}
	if got[0].String("name") != "api" {
		t.Errorf("items[0].name = %q, want api", got[0].String("name"))
	}

	if _, err := JQ(`.[`); err == nil {
		t.Error("JQ(invalid) error = nil, want parse error")
	}
}

func TestGetJSON(t *testing.T) {
	raw := []byte(teamResponse)

	v, ok := GetJSON(raw, "team.issues.pageInfo.endCursor")
	if !ok || v != "c2" {
		t.Errorf("GetJSON(endCursor) = %v, %v; want c2, true", v, ok)
	}
	if _, ok := GetJSON(raw, "team.nothing"); ok {
		t.Error("GetJSON(missing) ok = true, want false")
	}

	node, ok := GetJSON(raw, "team.issues.nodes.0")
	if !ok {
		t.Fatal("GetJSON(node) ok = false")
	}
	if rec, isRec := node.(*record.Record); !isRec || rec.String("title") != "one" {
		t.Errorf("GetJSON(node) = %#v, want record with title one", node)
	}
}
