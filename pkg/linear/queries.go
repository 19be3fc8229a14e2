package linear

import "github.com/Sternrassler/gqlfetch/pkg/query"

var teamsTemplate = query.New(`query Teams {
  teams(<PAGE_ARGS>) {
    nodes {
      id
      key
      displayName
      name
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`)

// Issue listings stay short; full issues are refetched one by one.
var issuesTemplate = query.New(`query Team {
  team(<TEAM_ARGS>) {
    id
    name
    issues(<PAGE_ARGS>) {
      nodes {
        id
        identifier
        createdAt
        startedAt
        completedAt
        title
        description
        url
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`)

var issueTemplate = query.New(`query Issue {
  issue(<ISSUE_ARGS>) {
    id
    identifier
    createdAt
    startedAt
    completedAt
    title
    description
    url
    activitySummary
    parent {
      id
      identifier
    }
<CHILDREN><INVERSE_RELATIONS><RELATIONS><HISTORY>  }
}`)

var childrenTemplate = query.New(`    children(<ARGS>) {
      nodes {
        id
        identifier
        description
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
`)

const relationNodes = `      nodes {
        id
        type
        issue {
          id
          identifier
        }
        relatedIssue {
          id
          identifier
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
`

var inverseRelationsTemplate = query.New("    inverseRelations(<ARGS>) {\n" + relationNodes)

var relationsTemplate = query.New("    relations(<ARGS>) {\n" + relationNodes)

var historyTemplate = query.New(`    history(<ARGS>) {
      nodes {
        attachment {
          id
          url
          title
        }
        actor {
          id
          name
          displayName
        }
        createdAt
        fromCycle {
          name
        }
        toCycle {
          id
          name
        }
        fromState {
          id
          name
        }
        toState {
          id
          name
        }
        fromAssignee {
          id
          name
          displayName
        }
        toAssignee {
          id
          name
          displayName
        }
        changes
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
`)

// Page selects one page of a sub-connection. First <= 0 leaves the
// sub-connection out of the query.
type Page struct {
	First int
	After string
}

func (p Page) include() bool {
	return p.First > 0
}

func (p Page) args() query.Values {
	return query.Values{"ARGS": query.Page(p.First, p.After)}
}

// SubPages selects the sub-connection pages of an issue query.
type SubPages struct {
	Children         Page
	InverseRelations Page
	Relations        Page
	History          Page
}

// AllSubPages requests the first page of every sub-connection.
func AllSubPages(first int) SubPages {
	p := Page{First: first}
	return SubPages{Children: p, InverseRelations: p, Relations: p, History: p}
}

// Empty reports whether no sub-connection is requested.
func (s SubPages) Empty() bool {
	return !s.Children.include() && !s.InverseRelations.include() &&
		!s.Relations.include() && !s.History.include()
}

// TeamsQuery returns the query for one page of teams.
func TeamsQuery(first int, after string) string {
	return teamsTemplate.Render(query.Values{"PAGE_ARGS": query.Page(first, after)})
}

// IssuesQuery returns the query for one page of a team's issues.
func IssuesQuery(team string, first int, after string) string {
	return issuesTemplate.Render(query.Values{
		"TEAM_ARGS": query.ID(team),
		"PAGE_ARGS": query.Page(first, after),
	})
}

// IssueQuery returns the query for one issue and the requested pages of its
// sub-connections.
func IssueQuery(identifier string, sub SubPages) string {
	return issueTemplate.Render(query.Values{
		"ISSUE_ARGS":        query.ID(identifier),
		"CHILDREN":          query.Section(sub.Children.include(), childrenTemplate, sub.Children.args()),
		"INVERSE_RELATIONS": query.Section(sub.InverseRelations.include(), inverseRelationsTemplate, sub.InverseRelations.args()),
		"RELATIONS":         query.Section(sub.Relations.include(), relationsTemplate, sub.Relations.args()),
		"HISTORY":           query.Section(sub.History.include(), historyTemplate, sub.History.args()),
	})
}
