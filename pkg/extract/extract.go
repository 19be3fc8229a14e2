// Package extract locates values inside decoded GraphQL responses by
// dot-separated path, and pulls out connection page info, edges and nodes.
//
// Containers are *record.Record, map[string]any or []any. Numeric path
// segments index into sequences, so "repos.edges.0.node" is a valid path.
// A missing segment is never an error: lookups report absence instead.
package extract

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/tidwall/gjson"
)

// PageInfo is the cursor metadata of a GraphQL connection.
// An empty cursor string means the cursor is absent.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	EndCursor       string `json:"endCursor,omitempty"`
}

var pageInfoFields = []string{"hasNextPage", "hasPreviousPage", "startCursor", "endCursor"}

// Get walks container along path and returns the value found there.
// An empty path returns the container itself.
func Get(container any, path string) (any, bool) {
	if path == "" {
		return container, container != nil
	}

	current := container
	for _, segment := range strings.Split(path, ".") {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(container any, segment string) (any, bool) {
	switch c := container.(type) {
	case *record.Record:
		return c.Get(segment)
	case map[string]any:
		v, ok := c[segment]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

// PageInfoAt reads the page info object at path. It returns nil when the
// path is missing, does not hold an object, or the object carries none of
// hasNextPage, hasPreviousPage, startCursor and endCursor. Individual
// missing fields take their zero value.
func PageInfoAt(container any, path string) *PageInfo {
	v, ok := Get(container, path)
	if !ok {
		return nil
	}

	switch v.(type) {
	case *record.Record, map[string]any:
	default:
		return nil
	}
	lookup := func(key string) (any, bool) { return step(v, key) }

	found := false
	for _, field := range pageInfoFields {
		if _, ok := lookup(field); ok {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	info := &PageInfo{}
	if b, ok := lookup("hasNextPage"); ok {
		info.HasNextPage, _ = b.(bool)
	}
	if b, ok := lookup("hasPreviousPage"); ok {
		info.HasPreviousPage, _ = b.(bool)
	}
	if s, ok := lookup("startCursor"); ok {
		info.StartCursor, _ = s.(string)
	}
	if s, ok := lookup("endCursor"); ok {
		info.EndCursor, _ = s.(string)
	}
	return info
}

// Edges returns the sequence at path, or an empty slice.
func Edges(container any, path string) []any {
	v, ok := Get(container, path)
	if !ok {
		return []any{}
	}
	list, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return list
}

// Nodes returns the records in the sequence at path, or an empty slice.
// Elements that are not objects are skipped.
func Nodes(container any, path string) []*record.Record {
	return toRecords(Edges(container, path))
}

// EdgeNodes returns the node of every edge in the sequence at path.
func EdgeNodes(container any, path string) []*record.Record {
	edges := Edges(container, path)
	out := make([]*record.Record, 0, len(edges))
	for _, edge := range edges {
		node, ok := step(edge, "node")
		if !ok {
			continue
		}
		if rec := asRecord(node); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func toRecords(list []any) []*record.Record {
	out := make([]*record.Record, 0, len(list))
	for _, item := range list {
		if rec := asRecord(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func asRecord(v any) *record.Record {
	switch val := v.(type) {
	case *record.Record:
		return val
	case map[string]any:
		return record.FromMap(val)
	default:
		return nil
	}
}

// GetJSON looks up path directly in raw JSON. Missing paths and JSON null
// both report absence.
func GetJSON(raw []byte, path string) (any, bool) {
	res := gjson.GetBytes(raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	return record.FromResult(res), true
}
