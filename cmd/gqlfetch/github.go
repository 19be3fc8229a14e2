package main

import (
	"github.com/Sternrassler/gqlfetch/pkg/github"
	"github.com/spf13/cobra"
)

func newGitHubCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "Fetch from the GitHub GraphQL API",
		Long: `Fetch organization repositories and pull requests from GitHub.

The token is read from github.token in the config file, GQLFETCH_GITHUB_TOKEN
or GITHUB_TOKEN.`,
	}
	cmd.AddCommand(newGitHubReposCmd(a), newGitHubPRsCmd(a))
	return cmd
}

func (a *app) githubClient() (*github.Client, error) {
	cfg := a.cfg.Transport(a.cfg.GitHub.Endpoint, a.rdb)
	cfg.Token = a.cfg.GitHub.Token
	return github.New(cfg)
}

func (f fetchFlags) githubOptions(a *app, what string) github.Options {
	f = f.resolve(a.cfg)
	return github.Options{
		PageSize:     f.pageSize,
		Limit:        f.limit,
		Throttle:     f.throttle,
		IgnoreErrors: f.ignoreErrors,
		Progress:     a.progress(what),
	}
}

func newGitHubReposCmd(a *app) *cobra.Command {
	var org string
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List the repositories of an organization",
		Example: `  gqlfetch github repos --org acme
  gqlfetch github repos --org acme --limit 20 --out repos.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.githubClient()
			if err != nil {
				return err
			}
			defer client.Close()

			repos, err := client.Repositories(cmd.Context(), org, ff.githubOptions(a, "repositories"))
			if err != nil {
				return err
			}
			return a.writeJSON(ff.out, repos.Records())
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization login")
	cmd.MarkFlagRequired("org")
	ff.register(cmd, "write JSON to this file instead of stdout")
	return cmd
}

func newGitHubPRsCmd(a *app) *cobra.Command {
	var org, repo string
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:     "prs",
		Short:   "List the pull requests of a repository",
		Example: `  gqlfetch github prs --org acme --repo widgets --page-size 100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.githubClient()
			if err != nil {
				return err
			}
			defer client.Close()

			prs, err := client.PullRequests(cmd.Context(), org, repo, ff.githubOptions(a, "pull requests"))
			if err != nil {
				return err
			}
			return a.writeJSON(ff.out, prs.Records())
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization login")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("repo")
	ff.register(cmd, "write JSON to this file instead of stdout")
	return cmd
}
