package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	requestsRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gqlfetch_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	}, []string{"host"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlfetch_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical rate limit",
	}, []string{"host"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlfetch_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to warning rate limit",
	}, []string{"host"})
)

// DefaultThrottleDelay is the wait applied to a request in warning state.
const DefaultThrottleDelay = time.Second

// Tracker monitors API rate limits per host and gates requests.
type Tracker struct {
	store         stateStore
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a rate limit tracker. With a Redis client the state is
// shared by every process using that Redis; with nil it is kept in memory.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	var store stateStore
	if redisClient != nil {
		store = &redisStore{client: redisClient}
	} else {
		store = newMemoryStore()
	}
	return &Tracker{
		store:         store,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay changes the wait applied in warning state.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState returns the state for host. A healthy default is returned when no
// response from host has been seen yet.
func (t *Tracker) GetState(ctx context.Context, host string) (*State, error) {
	state, err := t.store.load(ctx, host)
	if err != nil {
		return nil, err
	}
	if state == nil {
		t.logger.Debug().Str("host", host).Msg("No rate limit state, returning default healthy state")
		return defaultState(), nil
	}
	return state, nil
}

// UpdateFromHeaders records the rate limit headers of a response from host.
// Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, host string, headers http.Header) error {
	state, ok, err := ParseHeaders(headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := t.store.save(ctx, host, state); err != nil {
		return err
	}

	requestsRemaining.WithLabelValues(host).Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("host", host).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Str("host", host).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Str("host", host).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}
	return nil
}

// ShouldAllowRequest reports whether a request to host may proceed. It
// returns false in critical state and sleeps in warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, host string) (bool, error) {
	state, err := t.GetState(ctx, host)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Str("host", host).
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.WithLabelValues(host).Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Str("host", host).
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")
		rateLimitThrottlesTotal.WithLabelValues(host).Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
