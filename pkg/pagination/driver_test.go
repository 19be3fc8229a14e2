package pagination

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/extract"
	"github.com/Sternrassler/gqlfetch/pkg/record"
)

// fakeConnection serves pages of items in the shape
// {"items": {"nodes": [...], "pageInfo": {...}}}.
type fakeConnection struct {
	mu       sync.Mutex
	pages    [][]*record.Record
	requests []Request
	failAt   int
	err      error
}

func newFakeConnection(sizes ...int) *fakeConnection {
	fc := &fakeConnection{}
	n := 0
	for _, size := range sizes {
		page := make([]*record.Record, 0, size)
		for i := 0; i < size; i++ {
			n++
			page = append(page, record.FromPairs("id", fmt.Sprintf("item-%d", n), "n", n))
		}
		fc.pages = append(fc.pages, page)
	}
	return fc
}

func (fc *fakeConnection) fetch(_ context.Context, req Request) (any, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.requests = append(fc.requests, req)

	if fc.failAt > 0 && req.Page == fc.failAt {
		return nil, fc.err
	}

	idx := 0
	if req.After != "" {
		if _, err := fmt.Sscanf(req.After, "cursor-%d", &idx); err != nil {
			return nil, fmt.Errorf("bad cursor %q", req.After)
		}
	}

	nodes := make([]any, 0, len(fc.pages[idx]))
	for _, item := range fc.pages[idx] {
		nodes = append(nodes, item)
	}
	info := record.FromPairs(
		"hasNextPage", idx+1 < len(fc.pages),
		"endCursor", fmt.Sprintf("cursor-%d", idx+1),
	)
	return record.FromPairs("items", record.FromPairs("nodes", nodes, "pageInfo", info)), nil
}

func (fc *fakeConnection) afters() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make([]string, 0, len(fc.requests))
	for _, r := range fc.requests {
		out = append(out, r.After)
	}
	return out
}

var (
	testItems    = ItemsFunc(extract.Items("items.nodes"))
	testPageInfo = PageInfoFunc(extract.PageInfoFunc("items.pageInfo"))
)

func byID(item *record.Record, _ int) string { return item.String("id") }

func TestRun_AccumulatesAllPages(t *testing.T) {
	fc := newFakeConnection(3, 3, 2)
	d := NewDriver(Config{Key: byID})

	got, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got.Len() != 8 {
		t.Errorf("Len() = %d, want 8", got.Len())
	}
	if want := []string{"", "cursor-1", "cursor-2"}; !reflect.DeepEqual(fc.afters(), want) {
		t.Errorf("cursors = %v, want %v", fc.afters(), want)
	}
	keys := got.Keys()
	if keys[0] != "item-1" || keys[7] != "item-8" {
		t.Errorf("Keys() = %v, want item-1..item-8 in order", keys)
	}
}

func TestRun_DefaultKeyIsOrdinal(t *testing.T) {
	fc := newFakeConnection(2, 1)
	got, err := NewDriver(Config{}).Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []string{"0", "1", "2"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", got.Keys(), want)
	}
}

func TestRun_DuplicateKeysLastWriteWins(t *testing.T) {
	fc := newFakeConnection(2, 2)
	sameKey := func(item *record.Record, _ int) string {
		if item.Value("n") == 1 || item.Value("n") == 4 {
			return "dup"
		}
		return item.String("id")
	}

	got, err := NewDriver(Config{Key: sameKey}).Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}
	dup, _ := got.Get("dup")
	if dup.Value("n") != 4 {
		t.Errorf("dup.n = %v, want 4 (last write)", dup.Value("n"))
	}
	if got.Keys()[0] != "dup" {
		t.Errorf("first key = %q, want dup to keep its first position", got.Keys()[0])
	}
}

func TestRun_Limit(t *testing.T) {
	fc := newFakeConnection(4, 4, 4, 4)
	d := NewDriver(Config{Limit: 6, PageSize: 4})

	got, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fc.requests) != 2 {
		t.Errorf("pages fetched = %d, want 2", len(fc.requests))
	}
	if got.Len() != 8 {
		t.Errorf("Len() = %d, want 8 (crossing page kept whole)", got.Len())
	}
	if fc.requests[0].First != 4 || fc.requests[1].First != 2 {
		t.Errorf("First = %d,%d; want 4,2", fc.requests[0].First, fc.requests[1].First)
	}
}

func TestRun_MaxPages(t *testing.T) {
	fc := newFakeConnection(1, 1, 1, 1)
	got, err := NewDriver(Config{MaxPages: 2}).Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("Len() = %d, want 2", got.Len())
	}
}

func TestRun_DeliveryMode(t *testing.T) {
	fc := newFakeConnection(2, 2, 1)

	var batches []Batch
	var progress []int
	d := NewDriver(Config{
		OnBatch: func(_ context.Context, b Batch) error {
			batches = append(batches, b)
			return nil
		},
		Progress: func(current, total int) {
			if total != -1 {
				t.Errorf("progress total = %d, want -1", total)
			}
			progress = append(progress, current)
		},
	})

	got, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Len() = %d, want 0 in delivery mode", got.Len())
	}
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}

	wantCursors := []string{"cursor-1", "cursor-2", "cursor-3"}
	for i, b := range batches {
		if b.Cursor != wantCursors[i] {
			t.Errorf("batch %d cursor = %q, want %q", i, b.Cursor, wantCursors[i])
		}
		if b.Page != i+1 {
			t.Errorf("batch %d page = %d, want %d", i, b.Page, i+1)
		}
	}
	if batches[2].PageInfo.HasNextPage {
		t.Error("last batch HasNextPage = true")
	}
	if want := []int{2, 4, 5}; !reflect.DeepEqual(progress, want) {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}

func TestRun_CallbackErrorStops(t *testing.T) {
	fc := newFakeConnection(1, 1, 1)
	stop := errors.New("disk full")

	d := NewDriver(Config{
		OnBatch: func(_ context.Context, b Batch) error {
			if b.Page == 2 {
				return stop
			}
			return nil
		},
	})

	_, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if !errors.Is(err, stop) {
		t.Errorf("Run() error = %v, want %v", err, stop)
	}
	if len(fc.requests) != 2 {
		t.Errorf("pages fetched = %d, want 2", len(fc.requests))
	}
}

type transportError struct{ status int }

func (e *transportError) Error() string { return fmt.Sprintf("status %d", e.status) }

func TestRun_FetchErrorPropagates(t *testing.T) {
	fc := newFakeConnection(1, 1, 1)
	fc.failAt = 2
	fc.err = &transportError{status: 502}

	d := NewDriver(Config{IgnoreErrors: true})
	got, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
	if got != nil {
		t.Error("Run() returned a collection on error")
	}

	var te *transportError
	if !errors.As(err, &te) || te.status != 502 {
		t.Errorf("Run() error = %v, want transport error 502", err)
	}
	if !fc.requests[0].IgnoreErrors {
		t.Error("IgnoreErrors not forwarded to fetch")
	}
	if len(fc.requests) != 2 {
		t.Errorf("fetches = %d, want 2 (no retry)", len(fc.requests))
	}
}

func TestRun_MissingPageInfoStops(t *testing.T) {
	calls := 0
	fetch := func(context.Context, Request) (any, error) {
		calls++
		return record.FromPairs("items", record.FromPairs("nodes", []any{record.FromPairs("id", "a")})), nil
	}

	got, err := NewDriver(Config{}).Run(context.Background(), fetch, testItems, testPageInfo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 1 || got.Len() != 1 {
		t.Errorf("calls = %d, len = %d; want 1, 1", calls, got.Len())
	}
}

func TestRun_StalledCursor(t *testing.T) {
	fetch := func(context.Context, Request) (any, error) {
		info := record.FromPairs("hasNextPage", true, "endCursor", "same")
		return record.FromPairs("items", record.FromPairs("nodes", []any{}, "pageInfo", info)), nil
	}

	_, err := NewDriver(Config{}).Run(context.Background(), fetch, testItems, testPageInfo)
	if !errors.Is(err, ErrCursorStalled) {
		t.Errorf("Run() error = %v, want ErrCursorStalled", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	fc := newFakeConnection(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDriver(Config{}).Run(ctx, fc.fetch, testItems, testPageInfo)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(fc.requests) != 0 {
		t.Errorf("fetches = %d, want 0", len(fc.requests))
	}
}

func TestRun_AdaptiveThrottle(t *testing.T) {
	const base = 100 * time.Millisecond

	tests := []struct {
		name  string
		sizes []int
		want  []time.Duration
	}{
		{"short last page", []int{4, 4, 1}, []time.Duration{base, base, base / 4}},
		{"growing pages", []int{1, 2, 4}, []time.Duration{base, base, base}},
		{"within five percent", []int{100, 96}, []time.Duration{base, base}},
		{"below five percent", []int{20, 18}, []time.Duration{base, base * 9 / 10}},
		{"empty page", []int{3, 0}, []time.Duration{base, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeConnection(tt.sizes...)
			d := NewDriver(Config{Throttle: base})

			var waits []time.Duration
			d.sleep = func(_ context.Context, wait time.Duration) error {
				waits = append(waits, wait)
				return nil
			}

			if _, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !reflect.DeepEqual(waits, tt.want) {
				t.Errorf("waits = %v, want %v", waits, tt.want)
			}
		})
	}
}

func TestRun_NoThrottleNoSleep(t *testing.T) {
	fc := newFakeConnection(1, 1)
	d := NewDriver(Config{})
	d.sleep = func(context.Context, time.Duration) error {
		t.Error("sleep called without throttle")
		return nil
	}
	if _, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	d := NewDriver(Config{Key: byID, Throttle: time.Millisecond})

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fc := newFakeConnection(i+1, i+1)
			got, err := d.Run(context.Background(), fc.fetch, testItems, testPageInfo)
			if err != nil {
				t.Errorf("run %d error = %v", i, err)
				return
			}
			results[i] = got.Len()
		}(i)
	}
	wg.Wait()

	for i, n := range results {
		if n != 2*(i+1) {
			t.Errorf("run %d len = %d, want %d", i, n, 2*(i+1))
		}
	}
}

func TestRun_RequiresFunctions(t *testing.T) {
	if _, err := NewDriver(Config{}).Run(context.Background(), nil, testItems, testPageInfo); err == nil {
		t.Error("Run(nil fetch) error = nil")
	}
}
