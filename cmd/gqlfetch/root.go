package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/gqlfetch/internal/config"
	"github.com/Sternrassler/gqlfetch/pkg/logging"
	"github.com/Sternrassler/gqlfetch/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is the state shared by all commands of one invocation.
type app struct {
	out io.Writer

	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string

	cfg         *config.Config
	rdb         *redis.Client
	logger      zerolog.Logger
	stopMetrics context.CancelFunc
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "gqlfetch",
		Short: "Fetch paginated GraphQL connections and load them into tables",
		Long: `gqlfetch walks cursor-paginated GraphQL connections page by page.

It ships adapters for the GitHub and Linear APIs, a generic query runner
for any endpoint that takes an $after cursor, and a schema command that
infers column types from fetched records and creates a matching table.

Examples:
  gqlfetch github repos --org acme
  gqlfetch linear issues --team <team-id> --out ./issues --full --resume
  gqlfetch query --endpoint https://api.example.com/graphql --file q.graphql --items-path viewer.items.nodes --page-info-path viewer.items.pageInfo
  gqlfetch schema --dir ./issues --db sqlite://issues.db --table issues --insert`,
		Version:           "0.1.0",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.pretty, "pretty", false, "human-readable console logs")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newGitHubCmd(a),
		newLinearCmd(a),
		newQueryCmd(a),
		newSchemaCmd(a),
	)
	return root
}

// setup loads the configuration and starts logging and metrics.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.pretty {
		cfg.Logging.Pretty = true
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	a.logger = logging.Setup(logging.Config{
		Level:      logging.LogLevel(cfg.Logging.Level),
		Pretty:     cfg.Logging.Pretty,
		Output:     os.Stderr,
		FilePath:   cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	a.rdb = cfg.RedisClient()
	if a.rdb != nil {
		if err := a.rdb.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				a.logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server failed")
			}
		}()
	}
	return nil
}

func (a *app) teardown() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}

// fetchFlags are shared by every command that pages through a connection.
type fetchFlags struct {
	limit        int
	pageSize     int
	throttle     time.Duration
	ignoreErrors bool
	out          string
}

func (f *fetchFlags) register(cmd *cobra.Command, outUsage string) {
	flags := cmd.Flags()
	flags.IntVar(&f.limit, "limit", 0, "stop after this many items (0 = all)")
	flags.IntVar(&f.pageSize, "page-size", 0, "items per page (default from config)")
	flags.DurationVar(&f.throttle, "throttle", 0, "base wait between pages (default from config)")
	flags.BoolVar(&f.ignoreErrors, "ignore-errors", false, "use partial data when a page carries GraphQL errors")
	flags.StringVar(&f.out, "out", "", outUsage)
}

// resolve fills unset flags from the configuration.
func (f fetchFlags) resolve(cfg *config.Config) fetchFlags {
	if f.pageSize == 0 {
		f.pageSize = cfg.Fetch.PageSize
	}
	if f.limit == 0 {
		f.limit = cfg.Fetch.Limit
	}
	if f.throttle == 0 {
		f.throttle = cfg.Fetch.Throttle
	}
	f.ignoreErrors = f.ignoreErrors || cfg.Fetch.IgnoreErrors
	return f
}

// progress logs the running item count.
func (a *app) progress(what string) func(current, total int) {
	return func(current, _ int) {
		a.logger.Info().Str("fetch", what).Int("items", current).Msg("Progress")
	}
}

// writeJSON prints v as indented JSON to path, or to the command output when
// path is empty.
func (a *app) writeJSON(path string, v any) error {
	w := a.out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
