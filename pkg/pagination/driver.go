package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination runs.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gqlfetch_pages_fetched_total",
		Help: "Total pages fetched by pagination runs",
	})

	itemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gqlfetch_items_fetched_total",
		Help: "Total items accumulated or delivered by pagination runs",
	})

	throttleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gqlfetch_throttle_wait_seconds",
		Help:    "Adaptive throttle wait between pages",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlfetch_pagination_runs_total",
		Help: "Pagination runs by outcome",
	}, []string{"outcome"})
)

// ErrCursorStalled is returned when a page reports a next page but its end
// cursor is missing or equal to the cursor that produced it.
var ErrCursorStalled = errors.New("pagination cursor did not advance")

// Request describes one page fetch.
type Request struct {
	// Page is the 1-based page number.
	Page int
	// After is the cursor to resume from, empty for the first page.
	After string
	// First is the requested page size, 0 when unset.
	First int
	// IgnoreErrors is forwarded from Config and is advisory only.
	IgnoreErrors bool
}

// FetchFunc fetches one page and returns the decoded response.
type FetchFunc func(ctx context.Context, req Request) (any, error)

// ItemsFunc extracts the page's items from a response.
type ItemsFunc func(resp any) []*record.Record

// PageInfoFunc extracts the connection page info from a response.
type PageInfoFunc func(resp any) *extract.PageInfo

// KeyFunc returns the accumulator key of an item. index is the item's
// ordinal across the whole run.
type KeyFunc func(item *record.Record, index int) string

// BatchFunc receives each page's items in delivery mode. Returning an error
// stops the run.
type BatchFunc func(ctx context.Context, batch Batch) error

// ProgressFunc is called after every page with the running item count.
// total is -1 because connections do not report a total count.
type ProgressFunc func(current, total int)

// Batch is one page of items.
type Batch struct {
	Page     int
	Items    []*record.Record
	PageInfo extract.PageInfo
	// Cursor is the cursor after this batch.
	Cursor string
}

// Config holds driver configuration.
type Config struct {
	// Limit stops the run once this many items were seen. 0 means no limit.
	// The page that crosses the limit is kept whole.
	Limit int

	// PageSize is passed to the fetch function as Request.First, reduced to
	// the remaining budget when a limit is set.
	PageSize int

	// MaxPages stops the run after this many pages. 0 means no limit.
	MaxPages int

	// Throttle is the base wait between pages, scaled down for short pages.
	Throttle time.Duration

	// IgnoreErrors is passed through to the fetch function.
	IgnoreErrors bool

	// OnBatch switches the driver to delivery mode.
	OnBatch BatchFunc

	// Key names items in the accumulator. Defaults to the item ordinal.
	Key KeyFunc

	Progress ProgressFunc
}

// DefaultConfig returns the defaults used by the API adapters.
func DefaultConfig() Config {
	return Config{
		PageSize: 50,
	}
}

// Driver runs the pagination loop. A Driver holds configuration only, so a
// single Driver may run any number of fetches, concurrently or in sequence.
type Driver struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver.
func NewDriver(cfg Config) *Driver {
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 0
	}
	return &Driver{
		config: cfg,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runState is the mutable state of one Run.
type runState struct {
	id           string
	cursor       string
	page         int
	total        int
	maxBatchSeen int
	collection   *Collection
	logger       zerolog.Logger
}

// Run fetches pages until the connection is exhausted, the limit or page cap
// is reached, or an error occurs.
//
// Without OnBatch the items are accumulated and returned. With OnBatch each
// page is handed to the callback and dropped; Run then returns an empty
// collection.
func (d *Driver) Run(ctx context.Context, fetch FetchFunc, items ItemsFunc, pageInfo PageInfoFunc) (*Collection, error) {
	if fetch == nil || items == nil || pageInfo == nil {
		return nil, fmt.Errorf("fetch, items and page info functions are required")
	}

	st := &runState{
		id:           ulid.Make().String(),
		maxBatchSeen: 1,
		collection:   NewCollection(),
	}
	st.logger = log.With().Str("component", "pagination").Str("run_id", st.id).Logger()

	start := time.Now()
	st.logger.Debug().
		Int("limit", d.config.Limit).
		Int("page_size", d.config.PageSize).
		Dur("throttle", d.config.Throttle).
		Bool("streaming", d.config.OnBatch != nil).
		Msg("Starting pagination run")

	for {
		if err := ctx.Err(); err != nil {
			runsTotal.WithLabelValues("cancelled").Inc()
			return nil, err
		}

		st.page++
		req := Request{
			Page:         st.page,
			After:        st.cursor,
			First:        d.pageSize(st.total),
			IgnoreErrors: d.config.IgnoreErrors,
		}

		resp, err := fetch(ctx, req)
		if err != nil {
			runsTotal.WithLabelValues("error").Inc()
			st.logger.Warn().Err(err).Int("page", st.page).Str("cursor", st.cursor).Msg("Page fetch failed")
			return nil, fmt.Errorf("fetch page %d: %w", st.page, err)
		}
		pagesFetchedTotal.Inc()

		batch := items(resp)
		info := pageInfo(resp)

		if d.config.OnBatch != nil {
			b := Batch{Page: st.page, Items: batch}
			if info != nil {
				b.PageInfo = *info
				b.Cursor = info.EndCursor
			}
			if err := d.config.OnBatch(ctx, b); err != nil {
				runsTotal.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("deliver page %d: %w", st.page, err)
			}
			st.total += len(batch)
		} else {
			for _, item := range batch {
				st.collection.Put(d.key(item, st.total), item)
				st.total++
			}
		}
		itemsFetchedTotal.Add(float64(len(batch)))

		if d.config.Progress != nil {
			d.config.Progress(st.total, -1)
		}

		st.logger.Debug().
			Int("page", st.page).
			Int("items", len(batch)).
			Int("total", st.total).
			Msg("Page processed")

		if d.config.Throttle > 0 {
			wait := d.throttle(st, len(batch))
			throttleSeconds.Observe(wait.Seconds())
			if err := d.sleep(ctx, wait); err != nil {
				runsTotal.WithLabelValues("cancelled").Inc()
				return nil, err
			}
		}

		done, err := d.finished(st, info)
		if err != nil {
			runsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if done {
			break
		}
		st.cursor = info.EndCursor
	}

	runsTotal.WithLabelValues("complete").Inc()
	st.logger.Info().
		Int("pages", st.page).
		Int("items", st.total).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return st.collection, nil
}

// pageSize returns the page size to request given the items seen so far.
func (d *Driver) pageSize(total int) int {
	size := d.config.PageSize
	if d.config.Limit > 0 {
		remaining := d.config.Limit - total
		if size <= 0 || remaining < size {
			size = remaining
		}
	}
	return size
}

func (d *Driver) key(item *record.Record, index int) string {
	if d.config.Key != nil {
		return d.config.Key(item, index)
	}
	return fmt.Sprintf("%d", index)
}

// throttle computes the wait after a batch of size items. The largest batch
// seen so far is the baseline; a batch under 95% of it waits proportionally
// less.
func (d *Driver) throttle(st *runState, size int) time.Duration {
	if size > st.maxBatchSeen {
		st.maxBatchSeen = size
	}
	ratio := 1.0
	if float64(size) < 0.95*float64(st.maxBatchSeen) {
		ratio = float64(size) / float64(st.maxBatchSeen)
		if ratio > 1 {
			ratio = 1
		}
	}
	return time.Duration(float64(d.config.Throttle) * ratio)
}

func (d *Driver) finished(st *runState, info *extract.PageInfo) (bool, error) {
	switch {
	case info == nil:
		st.logger.Warn().Int("page", st.page).Msg("Response has no page info, stopping")
		return true, nil
	case !info.HasNextPage:
		return true, nil
	case d.config.Limit > 0 && st.total >= d.config.Limit:
		st.logger.Debug().Int("limit", d.config.Limit).Int("total", st.total).Msg("Limit reached")
		return true, nil
	case d.config.MaxPages > 0 && st.page >= d.config.MaxPages:
		st.logger.Debug().Int("max_pages", d.config.MaxPages).Msg("Page cap reached")
		return true, nil
	case info.EndCursor == "" || info.EndCursor == st.cursor:
		return false, fmt.Errorf("%w: page %d, cursor %q", ErrCursorStalled, st.page, info.EndCursor)
	}
	return false, nil
}
