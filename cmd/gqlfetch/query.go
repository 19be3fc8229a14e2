package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/gql"
	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/spf13/cobra"
)

type queryFlags struct {
	endpoint     string
	file         string
	token        string
	key          string
	itemsPath    string
	itemsJQ      string
	edges        bool
	pageInfoPath string
	keyField     string
	afterVar     string
	firstVar     string
	vars         map[string]string
}

func newQueryCmd(a *app) *cobra.Command {
	var qf queryFlags
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Page through any connection that takes an $after cursor",
		Long: `Run a query file against any GraphQL endpoint and follow its cursor.

The query must declare an $after variable (and optionally a page size
variable named by --first-var). Items are located with --items-path, a
dotted path to the node list, or with a jq expression via --items-jq.`,
		Example: `  gqlfetch query --endpoint https://api.example.com/graphql --file users.graphql \
    --items-path viewer.users.nodes --page-info-path viewer.users.pageInfo --first-var first`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQuery(cmd, qf, ff.resolve(a.cfg))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&qf.endpoint, "endpoint", "", "GraphQL endpoint URL")
	flags.StringVar(&qf.file, "file", "", "file holding the query text")
	flags.StringVar(&qf.token, "token", "", "bearer token")
	flags.StringVar(&qf.key, "key", "", "API key sent without the Bearer prefix")
	flags.StringVar(&qf.itemsPath, "items-path", "", "dotted path to the item list")
	flags.StringVar(&qf.itemsJQ, "items-jq", "", "jq expression producing the items")
	flags.BoolVar(&qf.edges, "edges", false, "items-path points at an edge list")
	flags.StringVar(&qf.pageInfoPath, "page-info-path", "", "dotted path to the pageInfo object")
	flags.StringVar(&qf.keyField, "key-field", "", "accumulate items by this field instead of their position")
	flags.StringVar(&qf.afterVar, "after-var", "after", "name of the cursor variable")
	flags.StringVar(&qf.firstVar, "first-var", "", "name of the page size variable")
	flags.StringToStringVar(&qf.vars, "var", nil, "query variable as name=value (repeatable)")
	cmd.MarkFlagRequired("endpoint")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("page-info-path")
	cmd.MarkFlagsMutuallyExclusive("items-path", "items-jq")
	cmd.MarkFlagsOneRequired("items-path", "items-jq")
	ff.register(cmd, "write JSON to this file instead of stdout")
	return cmd
}

func (qf queryFlags) items() (pagination.ItemsFunc, error) {
	switch {
	case qf.itemsJQ != "":
		return extract.JQ(qf.itemsJQ)
	case qf.edges:
		return extract.EdgeItems(qf.itemsPath), nil
	case qf.itemsPath != "":
		return extract.Items(qf.itemsPath), nil
	}
	return nil, errdefs.Configuration("--items-path or --items-jq is required")
}

func (a *app) runQuery(cmd *cobra.Command, qf queryFlags, ff fetchFlags) error {
	text, err := os.ReadFile(qf.file)
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}
	items, err := qf.items()
	if err != nil {
		return err
	}

	cfg := a.cfg.Transport(qf.endpoint, a.rdb)
	cfg.Token = qf.token
	cfg.Key = qf.key
	client, err := gql.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	vars := make(map[string]any, len(qf.vars))
	for k, v := range qf.vars {
		vars[k] = v
	}

	driverCfg := pagination.Config{
		PageSize:     ff.pageSize,
		Limit:        ff.limit,
		Throttle:     ff.throttle,
		IgnoreErrors: ff.ignoreErrors,
		Progress:     a.progress("query"),
	}
	if qf.keyField != "" {
		driverCfg.Key = func(item *record.Record, index int) string {
			if v := item.Value(qf.keyField); v != nil {
				return fmt.Sprint(v)
			}
			return fmt.Sprint(index)
		}
	}

	fetch := client.Paged(gql.PagedQuery{
		Query:     string(text),
		Variables: vars,
		AfterVar:  qf.afterVar,
		FirstVar:  qf.firstVar,
	})
	result, err := pagination.NewDriver(driverCfg).Run(cmd.Context(), fetch, items, extract.PageInfoFunc(qf.pageInfoPath))
	if err != nil {
		return err
	}
	return a.writeJSON(ff.out, result.Records())
}
