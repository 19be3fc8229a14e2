// Package github fetches organization repositories and pull requests from
// the GitHub GraphQL API.
package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/gql"
	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/query"
	"github.com/Sternrassler/gqlfetch/pkg/record"
)

// DefaultEndpoint is the GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// DefaultPageSize is the page size used when Options.PageSize is unset.
// GitHub caps connections at 100 nodes per page.
const DefaultPageSize = 50

var repositoriesTemplate = query.New(`query Repositories {
  organization(<ORG_ARGS>) {
    repositories(<PAGE_ARGS>) {
      totalCount
      nodes {
        name
        url
        description
        isPrivate
        isArchived
        isFork
        createdAt
        updatedAt
        pushedAt
        stargazerCount
        forkCount
        primaryLanguage {
          name
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`)

var pullRequestsTemplate = query.New(`query PullRequests {
  repository(<REPO_ARGS>) {
    pullRequests(<PAGE_ARGS>) {
      totalCount
      nodes {
        number
        title
        state
        url
        createdAt
        updatedAt
        mergedAt
        closedAt
        merged
        additions
        deletions
        changedFiles
        author {
          login
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`)

// RepositoriesQuery returns the query for one page of an organization's
// repositories.
func RepositoriesQuery(org string, first int, after string) string {
	return repositoriesTemplate.Render(query.Values{
		"ORG_ARGS":  query.Arg("login", org),
		"PAGE_ARGS": query.Page(first, after),
	})
}

// PullRequestsQuery returns the query for one page of a repository's pull
// requests.
func PullRequestsQuery(org, repo string, first int, after string) string {
	return pullRequestsTemplate.Render(query.Values{
		"REPO_ARGS": query.Args(query.Arg("owner", org), query.Arg("name", repo)),
		"PAGE_ARGS": query.Page(first, after),
	})
}

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
		Key:          fieldKey(key),
	})
}

// fieldKey keys items by a field, falling back to the item ordinal when the
// field is missing.
func fieldKey(field string) pagination.KeyFunc {
	return func(item *record.Record, index int) string {
		switch v := item.Value(field).(type) {
		case nil:
			return strconv.Itoa(index)
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	}
}

// Client is a GitHub GraphQL client.
type Client struct {
	gql *gql.Client
}

// New creates a client. An empty endpoint defaults to DefaultEndpoint.
func New(cfg gql.Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	c, err := gql.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{gql: c}, nil
}

// NewWithClient wraps an existing transport.
func NewWithClient(c *gql.Client) *Client {
	return &Client{gql: c}
}

// GQL returns the underlying transport.
func (c *Client) GQL() *gql.Client {
	return c.gql
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.gql.Close()
}

// Repositories fetches the repositories of org keyed by name.
func (c *Client) Repositories(ctx context.Context, org string, opts Options) (*pagination.Collection, error) {
	if org == "" {
		return nil, errdefs.Configuration("organization is required")
	}
	fetch := c.gql.Templated(func(req pagination.Request) string {
		return RepositoriesQuery(org, req.First, req.After)
	})
	return opts.driver("name").Run(ctx, fetch,
		extract.Items("organization.repositories.nodes"),
		extract.PageInfoFunc("organization.repositories.pageInfo"))
}

// PullRequests fetches the pull requests of org/repo keyed by number.
func (c *Client) PullRequests(ctx context.Context, org, repo string, opts Options) (*pagination.Collection, error) {
	if org == "" || repo == "" {
		return nil, errdefs.Configuration("organization and repository are required")
	}
	fetch := c.gql.Templated(func(req pagination.Request) string {
		return PullRequestsQuery(org, repo, req.First, req.After)
	})
	return opts.driver("number").Run(ctx, fetch,
		extract.Items("repository.pullRequests.nodes"),
		extract.PageInfoFunc("repository.pullRequests.pageInfo"))
}
