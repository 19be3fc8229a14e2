package gql

import (
	"context"

	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/record"
)

// PagedQuery is a query whose cursor is passed as a variable.
type PagedQuery struct {
	Query     string
	Variables map[string]any

	// AfterVar names the cursor variable. Defaults to "after".
	AfterVar string

	// FirstVar names the page size variable. Empty leaves the page size to
	// the query text.
	FirstVar string
}

// Paged returns a fetch function for pagination.Driver that sends q with the
// request's cursor (and page size when FirstVar is set).
func (c *Client) Paged(q PagedQuery) pagination.FetchFunc {
	afterVar := q.AfterVar
	if afterVar == "" {
		afterVar = "after"
	}
	return func(ctx context.Context, req pagination.Request) (any, error) {
		vars := make(map[string]any, len(q.Variables)+2)
		for k, v := range q.Variables {
			vars[k] = v
		}
		if req.After != "" {
			vars[afterVar] = req.After
		}
		if q.FirstVar != "" && req.First > 0 {
			vars[q.FirstVar] = req.First
		}
		return c.fetch(ctx, Request{Query: q.Query, Variables: vars}, req)
	}
}

// QueryFunc renders the query text for one page.
type QueryFunc func(req pagination.Request) string

// Templated returns a fetch function for queries that inline the cursor and
// page size in the query text.
func (c *Client) Templated(build QueryFunc) pagination.FetchFunc {
	return func(ctx context.Context, req pagination.Request) (any, error) {
		return c.fetch(ctx, Request{Query: build(req)}, req)
	}
}

// fetch runs one page request. With IgnoreErrors, GraphQL errors next to
// partial data are logged and the partial data is used.
func (c *Client) fetch(ctx context.Context, r Request, req pagination.Request) (any, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		if !req.IgnoreErrors {
			return nil, queryError(resp)
		}
		c.logger.Warn().
			Int("page", req.Page).
			Int("errors", len(resp.Errors)).
			Str("first_error", resp.Errors[0].Message).
			Msg("Ignoring GraphQL errors, using partial data")
	}
	if resp.Data == nil {
		return record.New(), nil
	}
	return resp.Data, nil
}
