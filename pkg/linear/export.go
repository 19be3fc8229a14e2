package linear

import (
	"context"
	"fmt"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/Sternrassler/gqlfetch/pkg/sink"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultEnrichWorkers bounds concurrent IssueAllData calls during export.
const DefaultEnrichWorkers = 4

// ExportOptions controls Export.
type ExportOptions struct {
	Options

	// Dir receives one {identifier}.json file per issue.
	Dir string

	// Full refetches every issue with all of its sub-connections.
	Full bool

	// Resume skips issues that already have a file in Dir.
	Resume bool

	EnrichWorkers int
}

// ExportStats counts the issues handled by one Export call.
type ExportStats struct {
	Listed   int `json:"listed"`
	Skipped  int `json:"skipped"`
	Enriched int `json:"enriched"`
	Written  int `json:"written"`
}

// exportRun is the state of one Export call.
type exportRun struct {
	dir      *sink.Dir
	enrich   *Client
	existing map[string]bool
	full     bool
	workers  int
	next     pagination.BatchFunc
	stats    ExportStats
	logger   zerolog.Logger
}

// Export streams the issues of team to opts.Dir page by page. Issues are
// not accumulated in memory. With Full each page is enriched through a
// separate transport before it is written.
func (c *Client) Export(ctx context.Context, team string, opts ExportOptions) (*ExportStats, error) {
	if team == "" {
		return nil, errdefs.Configuration("team is required")
	}
	dir, err := sink.NewDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	run := &exportRun{
		dir:     dir,
		full:    opts.Full,
		workers: opts.EnrichWorkers,
		next:    opts.OnBatch,
		logger:  c.logger.With().Str("team", team).Str("dir", dir.Path()).Logger(),
	}
	if run.workers <= 0 {
		run.workers = DefaultEnrichWorkers
	}
	if opts.Full {
		run.enrich = NewWithClient(c.gql.Clone())
		run.enrich.subPageSize = c.subPageSize
	}
	if opts.Resume {
		if run.existing, err = dir.Existing(); err != nil {
			return nil, err
		}
		run.logger.Info().Int("existing", len(run.existing)).Msg("Resuming export")
	}

	listing := opts.Options
	listing.OnBatch = run.deliver
	if _, err := c.Issues(ctx, team, listing); err != nil {
		return &run.stats, err
	}

	run.logger.Info().
		Int("listed", run.stats.Listed).
		Int("skipped", run.stats.Skipped).
		Int("written", run.stats.Written).
		Msg("Export complete")
	return &run.stats, nil
}

func (r *exportRun) deliver(ctx context.Context, batch pagination.Batch) error {
	todo := make([]*record.Record, 0, len(batch.Items))
	for _, issue := range batch.Items {
		r.stats.Listed++
		if r.existing[issue.String("identifier")] {
			r.stats.Skipped++
			continue
		}
		todo = append(todo, issue)
	}

	if r.full && len(todo) > 0 {
		if err := r.enrichAll(ctx, todo); err != nil {
			return err
		}
	}

	n, err := r.dir.Write(CleanIssues(todo), sink.FieldKey("identifier"))
	r.stats.Written += n
	if err != nil {
		return err
	}
	r.logger.Debug().Int("page", batch.Page).Int("written", n).Msg("Issues exported")

	if r.next != nil {
		batch.Items = todo
		return r.next(ctx, batch)
	}
	return nil
}

// enrichAll replaces every issue with its full form, in place.
func (r *exportRun) enrichAll(ctx context.Context, issues []*record.Record) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, issue := range issues {
		i := i
		id := issue.String("identifier")
		g.Go(func() error {
			full, err := r.enrich.IssueAllData(gctx, id)
			if err != nil {
				return fmt.Errorf("enrich %s: %w", id, err)
			}
			full.Set(FieldFull, true)
			issues[i] = full
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.stats.Enriched += len(issues)
	return nil
}
