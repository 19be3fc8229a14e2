// Package linear fetches teams and issues from the Linear GraphQL API and
// exports fully populated issues to disk.
package linear

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/gql"
	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the Linear GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

const (
	// DefaultPageSize is the page size of team and issue listings.
	DefaultPageSize = 50

	// DefaultSubPageSize is the page size of issue sub-connections.
	DefaultSubPageSize = 50

	// FieldFull marks whether an issue carries its sub-connections.
	FieldFull = "is_full"
)

// Sub-connection fields of a full issue.
const (
	FieldChildren         = "children"
	FieldInverseRelations = "inverseRelations"
	FieldRelations        = "relations"
	FieldHistory          = "history"
)

var subConnections = []string{FieldChildren, FieldInverseRelations, FieldRelations, FieldHistory}

// ErrNotList is returned by ReplaceOrAppend when the merge target is not a
// list.
var ErrNotList = errors.New("merge target is not a list")

// Options controls a paginated fetch.
type Options struct {
	PageSize     int
	Limit        int
	Throttle     time.Duration
	IgnoreErrors bool
	Progress     pagination.ProgressFunc

	// OnBatch streams pages instead of accumulating them.
	OnBatch pagination.BatchFunc
}

func (o Options) driver(key string) *pagination.Driver {
	size := o.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return pagination.NewDriver(pagination.Config{
		PageSize:     size,
		Limit:        o.Limit,
		Throttle:     o.Throttle,
		IgnoreErrors: o.IgnoreErrors,
		Progress:     o.Progress,
		OnBatch:      o.OnBatch,
		Key: func(item *record.Record, index int) string {
			if s := item.String(key); s != "" {
				return s
			}
			return strconv.Itoa(index)
		},
	})
}

// Client is a Linear GraphQL client.
type Client struct {
	gql         *gql.Client
	subPageSize int
	logger      zerolog.Logger
}

// New creates a client. Linear API keys go in Config.Key, which is sent
// without the Bearer prefix. An empty endpoint defaults to DefaultEndpoint.
func New(cfg gql.Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	c, err := gql.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(c), nil
}

// NewWithClient wraps an existing transport.
func NewWithClient(c *gql.Client) *Client {
	return &Client{
		gql:         c,
		subPageSize: DefaultSubPageSize,
		logger:      log.With().Str("component", "linear").Logger(),
	}
}

// SetSubPageSize sets the page size used for issue sub-connections.
func (c *Client) SetSubPageSize(n int) {
	if n > 0 {
		c.subPageSize = n
	}
}

// GQL returns the underlying transport.
func (c *Client) GQL() *gql.Client {
	return c.gql
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.gql.Close()
}

// Teams fetches every team visible to the key, keyed by id.
func (c *Client) Teams(ctx context.Context, opts Options) (*pagination.Collection, error) {
	fetch := c.gql.Templated(func(req pagination.Request) string {
		return TeamsQuery(req.First, req.After)
	})
	return opts.driver("id").Run(ctx, fetch,
		extract.Items("teams.nodes"),
		extract.PageInfoFunc("teams.pageInfo"))
}

// Issues fetches the issues of team keyed by identifier. Every issue is
// marked is_full=false; listings carry no sub-connections.
func (c *Client) Issues(ctx context.Context, team string, opts Options) (*pagination.Collection, error) {
	if team == "" {
		return nil, errdefs.Configuration("team is required")
	}
	fetch := c.gql.Templated(func(req pagination.Request) string {
		return IssuesQuery(team, req.First, req.After)
	})
	nodes := extract.Items("team.issues.nodes")
	items := func(resp any) []*record.Record {
		issues := nodes(resp)
		for _, issue := range issues {
			issue.Set(FieldFull, false)
		}
		return issues
	}
	return opts.driver("identifier").Run(ctx, fetch, items,
		extract.PageInfoFunc("team.issues.pageInfo"))
}

// IssueAllData fetches one issue with all of its sub-connections. Each
// sub-connection is paged until it reports no next page; the nodes of every
// page are merged into the issue.
func (c *Client) IssueAllData(ctx context.Context, identifier string) (*record.Record, error) {
	if identifier == "" {
		return nil, errdefs.Configuration("issue identifier is required")
	}

	logger := c.logger.With().Str("issue", identifier).Logger()
	sub := AllSubPages(c.subPageSize)
	var issue *record.Record

	for round := 1; !sub.Empty(); round++ {
		data, err := c.gql.Execute(ctx, IssueQuery(identifier, sub), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch issue %s: %w", identifier, err)
		}
		fetched, ok := data.Value("issue").(*record.Record)
		if !ok {
			return nil, errdefs.MissingResource("issue %s not found", identifier)
		}

		if issue == nil {
			issue = fetched.Clone()
			for _, name := range subConnections {
				issue.Delete(name)
			}
		}

		next := SubPages{}
		for _, conn := range []struct {
			name string
			cur  Page
			next *Page
		}{
			{FieldChildren, sub.Children, &next.Children},
			{FieldInverseRelations, sub.InverseRelations, &next.InverseRelations},
			{FieldRelations, sub.Relations, &next.Relations},
			{FieldHistory, sub.History, &next.History},
		} {
			if !conn.cur.include() {
				continue
			}
			page, ok := fetched.Value(conn.name).(*record.Record)
			if !ok {
				continue
			}
			if nodes, ok := page.Value("nodes").([]any); ok && len(nodes) > 0 {
				if err := ReplaceOrAppend(issue, conn.name, record.FromPairs("nodes", nodes), "nodes"); err != nil {
					return nil, fmt.Errorf("merge %s of %s: %w", conn.name, identifier, err)
				}
			}
			info := extract.PageInfoAt(page, "pageInfo")
			if info != nil && info.HasNextPage && info.EndCursor != "" && info.EndCursor != conn.cur.After {
				*conn.next = Page{First: conn.cur.First, After: info.EndCursor}
			}
		}

		logger.Debug().Int("round", round).Msg("Issue page merged")
		sub = next
	}
	return issue, nil
}

// ReplaceOrAppend merges newStuff into rec[key]. When the field is absent or
// null it is set to newStuff. Otherwise the list found at subPath below the
// field is extended with the list at subPath below newStuff. Empty newStuff
// is a no-op.
func ReplaceOrAppend(rec *record.Record, key string, newStuff any, subPath ...string) error {
	if isEmpty(newStuff) {
		return nil
	}
	if rec.Value(key) == nil {
		rec.Set(key, newStuff)
		return nil
	}

	parent := rec
	field := key
	add := newStuff
	if len(subPath) > 0 {
		holder, ok := descend(rec.Value(key), subPath[:len(subPath)-1])
		if !ok {
			return fmt.Errorf("%w: %s.%v", ErrNotList, key, subPath)
		}
		parent = holder
		field = subPath[len(subPath)-1]
		add, _ = extract.Get(newStuff, strings.Join(subPath, "."))
	}

	existing, ok := parent.Value(field).([]any)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotList, key)
	}
	extra, ok := add.([]any)
	if !ok {
		return fmt.Errorf("%w: new value for %s", ErrNotList, key)
	}
	parent.Set(field, append(existing, extra...))
	return nil
}

// descend walks records along path.
func descend(v any, path []string) (*record.Record, bool) {
	rec, ok := v.(*record.Record)
	for _, segment := range path {
		if !ok {
			return nil, false
		}
		rec, ok = rec.Value(segment).(*record.Record)
	}
	return rec, ok
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case *record.Record:
		return t == nil || t.Len() == 0
	}
	return false
}

// CleanIssue removes sub-connections that hold no nodes.
func CleanIssue(issue *record.Record) *record.Record {
	for _, name := range subConnections {
		if !issue.Has(name) {
			continue
		}
		if len(extract.Nodes(issue.Value(name), "nodes")) == 0 {
			issue.Delete(name)
		}
	}
	return issue
}

// CleanIssues cleans every issue in place.
func CleanIssues(issues []*record.Record) []*record.Record {
	for _, issue := range issues {
		CleanIssue(issue)
	}
	return issues
}
