package main

import (
	"github.com/Sternrassler/gqlfetch/pkg/linear"
	"github.com/spf13/cobra"
)

func newLinearCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linear",
		Short: "Fetch from the Linear GraphQL API",
		Long: `Fetch teams and issues from Linear.

The API key is read from linear.key in the config file, GQLFETCH_LINEAR_KEY
or LINEAR_API_KEY.`,
	}
	cmd.AddCommand(newLinearTeamsCmd(a), newLinearIssuesCmd(a), newLinearIssueCmd(a))
	return cmd
}

func (a *app) linearClient() (*linear.Client, error) {
	cfg := a.cfg.Transport(a.cfg.Linear.Endpoint, a.rdb)
	cfg.Key = a.cfg.Linear.Key
	c, err := linear.New(cfg)
	if err != nil {
		return nil, err
	}
	c.SetSubPageSize(a.cfg.Linear.SubPageSize)
	return c, nil
}

func (f fetchFlags) linearOptions(a *app, what string) linear.Options {
	f = f.resolve(a.cfg)
	return linear.Options{
		PageSize:     f.pageSize,
		Limit:        f.limit,
		Throttle:     f.throttle,
		IgnoreErrors: f.ignoreErrors,
		Progress:     a.progress(what),
	}
}

func newLinearTeamsCmd(a *app) *cobra.Command {
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List the teams visible to the API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.linearClient()
			if err != nil {
				return err
			}
			defer client.Close()

			teams, err := client.Teams(cmd.Context(), ff.linearOptions(a, "teams"))
			if err != nil {
				return err
			}
			return a.writeJSON(ff.out, teams.Records())
		},
	}
	ff.register(cmd, "write JSON to this file instead of stdout")
	return cmd
}

func newLinearIssuesCmd(a *app) *cobra.Command {
	var team string
	var full, resume bool
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List or export the issues of a team",
		Long: `List the issues of a team.

With --out the issues are streamed page by page into one JSON file per
issue instead of being printed. --full refetches every issue with its
children, relations and history; --resume skips issues already written.`,
		Example: `  gqlfetch linear issues --team 9cfb482a-81e3-4154-b5b9-2c805e70a02d --limit 10
  gqlfetch linear issues --team 9cfb482a-81e3-4154-b5b9-2c805e70a02d --out ./issues --full --resume`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.linearClient()
			if err != nil {
				return err
			}
			defer client.Close()

			opts := ff.linearOptions(a, "issues")
			if ff.out == "" {
				issues, err := client.Issues(cmd.Context(), team, opts)
				if err != nil {
					return err
				}
				return a.writeJSON("", issues.Records())
			}

			stats, err := client.Export(cmd.Context(), team, linear.ExportOptions{
				Options:       opts,
				Dir:           ff.out,
				Full:          full,
				Resume:        resume,
				EnrichWorkers: a.cfg.Linear.EnrichWorkers,
			})
			if err != nil {
				return err
			}
			return a.writeJSON("", stats)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "team id")
	cmd.Flags().BoolVar(&full, "full", false, "fetch every issue with all sub-connections")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip issues already present in --out")
	cmd.MarkFlagRequired("team")
	ff.register(cmd, "export one JSON file per issue into this directory")
	return cmd
}

func newLinearIssueCmd(a *app) *cobra.Command {
	var id, out string

	cmd := &cobra.Command{
		Use:     "issue",
		Short:   "Fetch one issue with all of its sub-connections",
		Example: `  gqlfetch linear issue --id ENG-832`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.linearClient()
			if err != nil {
				return err
			}
			defer client.Close()

			issue, err := client.IssueAllData(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.writeJSON(out, linear.CleanIssue(issue))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "issue identifier, e.g. ENG-832")
	cmd.Flags().StringVar(&out, "out", "", "write JSON to this file instead of stdout")
	cmd.MarkFlagRequired("id")
	return cmd
}
