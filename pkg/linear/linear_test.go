package linear

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/gqlfetch/internal/testutil"
	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/gql"
	"github.com/Sternrassler/gqlfetch/pkg/record"
)

func newTestClient(t *testing.T, mock *testutil.MockGraphQL) *Client {
	t.Helper()
	cfg := gql.DefaultConfig(mock.URL())
	cfg.Key = "lin_api_test"
	cfg.InitialBackoff = time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_DefaultEndpoint(t *testing.T) {
	c, err := New(gql.Config{Key: "k"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()
	if got := c.GQL().Endpoint(); got != DefaultEndpoint {
		t.Errorf("Endpoint() = %q, want %q", got, DefaultEndpoint)
	}
}

func TestTeams(t *testing.T) {
	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.SetConnection("query Teams", "teams",
		[]map[string]any{{"id": "t1", "key": "ENG"}, {"id": "t2", "key": "OPS"}},
		[]map[string]any{{"id": "t3", "key": "WEB"}},
	)

	c := newTestClient(t, mock)
	teams, err := c.Teams(context.Background(), Options{PageSize: 2})
	if err != nil {
		t.Fatalf("Teams() error = %v", err)
	}
	if got := strings.Join(teams.Keys(), ","); got != "t1,t2,t3" {
		t.Errorf("keys = %s", got)
	}
	if got := mock.LastRequestHeader.Get("Authorization"); got != "lin_api_test" {
		t.Errorf("Authorization = %q, want the raw key", got)
	}
}

func TestIssues_MarkedPartial(t *testing.T) {
	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.SetConnection("query Team", "team.issues",
		[]map[string]any{{"identifier": "ENG-1"}, {"identifier": "ENG-2"}},
		[]map[string]any{{"identifier": "ENG-3"}},
	)

	c := newTestClient(t, mock)
	issues, err := c.Issues(context.Background(), "t1", Options{PageSize: 2})
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	if issues.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", issues.Len())
	}
	for _, issue := range issues.Records() {
		if full, ok := issue.Value(FieldFull).(bool); !ok || full {
			t.Errorf("%s: is_full = %v, want false", issue.String("identifier"), issue.Value(FieldFull))
		}
	}

	if _, err := c.Issues(context.Background(), "", Options{}); !errdefs.IsConfiguration(err) {
		t.Errorf("empty team error = %v", err)
	}
}

var issueArg = regexp.MustCompile(`issue\(id: "([^"]+)"\)`)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		t.Errorf("marshal: %v", err)
		return
	}
	testutil.WriteData(w, string(data))
}

func connection(hasNext bool, cursor string, nodes ...map[string]any) map[string]any {
	if nodes == nil {
		nodes = []map[string]any{}
	}
	return map[string]any{
		"nodes":    nodes,
		"pageInfo": map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
	}
}

func TestIssueAllData_PagesSubConnections(t *testing.T) {
	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.SetHandler(func(w http.ResponseWriter, req testutil.Request) {
		issue := map[string]any{"id": "uuid-1", "identifier": "ENG-1", "title": "Root"}
		if !strings.Contains(req.Query, `after: "ch-1"`) {
			issue["children"] = connection(true, "ch-1", map[string]any{"identifier": "ENG-2"})
			issue["inverseRelations"] = connection(false, "")
			issue["relations"] = connection(false, "")
			issue["history"] = connection(false, "h-1", map[string]any{"createdAt": "2024-01-01T00:00:00Z"})
		} else {
			issue["children"] = connection(false, "ch-2", map[string]any{"identifier": "ENG-3"})
		}
		writeJSON(t, w, map[string]any{"issue": issue})
	})

	c := newTestClient(t, mock)
	issue, err := c.IssueAllData(context.Background(), "ENG-1")
	if err != nil {
		t.Fatalf("IssueAllData() error = %v", err)
	}

	reqs := mock.GetRequests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if strings.Contains(reqs[1].Query, "history") || strings.Contains(reqs[1].Query, "relations") {
		t.Errorf("finished sub-connections were requested again:\n%s", reqs[1].Query)
	}

	if issue.String("title") != "Root" {
		t.Errorf("title = %q", issue.String("title"))
	}
	children := extract.Nodes(issue, "children.nodes")
	if len(children) != 2 || children[0].String("identifier") != "ENG-2" || children[1].String("identifier") != "ENG-3" {
		t.Errorf("children = %v", children)
	}
	if n := len(extract.Nodes(issue, "history.nodes")); n != 1 {
		t.Errorf("history nodes = %d, want 1", n)
	}
	if issue.Has("relations") || issue.Has("inverseRelations") {
		t.Error("empty sub-connections should not be set")
	}
}

func TestIssueAllData_NotFound(t *testing.T) {
	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.Enqueue(testutil.NewDataResponse(`{"issue": null}`))

	c := newTestClient(t, mock)
	_, err := c.IssueAllData(context.Background(), "ENG-404")
	if !errdefs.IsMissingResource(err) {
		t.Errorf("error = %v, want missing resource", err)
	}
}

func TestReplaceOrAppend(t *testing.T) {
	t.Run("sets absent field", func(t *testing.T) {
		rec := record.FromPairs("id", 1)
		if err := ReplaceOrAppend(rec, "tags", []any{"a"}); err != nil {
			t.Fatal(err)
		}
		if got := rec.Value("tags").([]any); len(got) != 1 {
			t.Errorf("tags = %v", got)
		}
	})

	t.Run("replaces null field", func(t *testing.T) {
		rec := record.FromPairs("tags", nil)
		if err := ReplaceOrAppend(rec, "tags", []any{"a", "b"}); err != nil {
			t.Fatal(err)
		}
		if got := rec.Value("tags").([]any); len(got) != 2 {
			t.Errorf("tags = %v", got)
		}
	})

	t.Run("appends list", func(t *testing.T) {
		rec := record.FromPairs("tags", []any{"a"})
		if err := ReplaceOrAppend(rec, "tags", []any{"b"}); err != nil {
			t.Fatal(err)
		}
		if got := rec.Value("tags").([]any); len(got) != 2 || got[1] != "b" {
			t.Errorf("tags = %v", got)
		}
	})

	t.Run("appends at sub path", func(t *testing.T) {
		rec := record.FromPairs("children", record.FromPairs("nodes", []any{"x"}))
		add := record.FromPairs("nodes", []any{"y", "z"})
		if err := ReplaceOrAppend(rec, "children", add, "nodes"); err != nil {
			t.Fatal(err)
		}
		got, _ := extract.Get(rec, "children.nodes")
		if list := got.([]any); len(list) != 3 {
			t.Errorf("nodes = %v", list)
		}
	})

	t.Run("empty new value is a no-op", func(t *testing.T) {
		rec := record.New()
		if err := ReplaceOrAppend(rec, "tags", []any{}); err != nil {
			t.Fatal(err)
		}
		if rec.Has("tags") {
			t.Error("empty value should not be set")
		}
	})

	t.Run("non-list target", func(t *testing.T) {
		rec := record.FromPairs("tags", "scalar")
		err := ReplaceOrAppend(rec, "tags", []any{"a"})
		if !errors.Is(err, ErrNotList) {
			t.Errorf("error = %v, want ErrNotList", err)
		}
	})
}

func TestCleanIssue(t *testing.T) {
	issue := record.FromPairs(
		"identifier", "ENG-1",
		"children", record.FromPairs("nodes", []any{}),
		"relations", record.FromPairs("nodes", []any{record.FromPairs("id", "r1")}),
		"history", nil,
	)
	CleanIssues([]*record.Record{issue})

	if issue.Has("children") || issue.Has("history") {
		t.Error("empty sub-connections should be removed")
	}
	if !issue.Has("relations") || !issue.Has("identifier") {
		t.Errorf("keys = %v", issue.Keys())
	}
}
