package extract

import (
	"fmt"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/itchyny/gojq"
)

// Items returns an extractor for the node list at path, e.g.
// "team.issues.nodes".
func Items(path string) func(resp any) []*record.Record {
	return func(resp any) []*record.Record {
		return Nodes(resp, path)
	}
}

// EdgeItems returns an extractor for the nodes of the edge list at path,
// e.g. "organization.repositories.edges".
func EdgeItems(path string) func(resp any) []*record.Record {
	return func(resp any) []*record.Record {
		return EdgeNodes(resp, path)
	}
}

// PageInfoFunc returns an extractor for the page info object at path.
func PageInfoFunc(path string) func(resp any) *PageInfo {
	return func(resp any) *PageInfo {
		return PageInfoAt(resp, path)
	}
}

// JQ compiles a jq expression into an item extractor. Every object the
// expression emits becomes one item; other outputs are ignored. Keys of
// items produced this way come out in sorted order.
func JQ(expr string) (func(resp any) []*record.Record, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile jq expression: %w", err)
	}

	return func(resp any) []*record.Record {
		out := make([]*record.Record, 0)
		iter := code.Run(record.Plain(resp))
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if _, isErr := v.(error); isErr {
				break
			}
			if m, ok := v.(map[string]any); ok {
				out = append(out, record.FromMap(m))
			}
		}
		return out
	}, nil
}
