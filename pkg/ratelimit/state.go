// Package ratelimit tracks GraphQL API rate limits and gates requests.
// It reads the request budget headers GitHub (X-RateLimit-Remaining,
// X-RateLimit-Reset) and Linear (X-RateLimit-Requests-Remaining,
// X-RateLimit-Requests-Reset) send with every response, so a long pagination
// run backs off before the API starts rejecting it.
package ratelimit

import (
	"time"
)

// Redis key suffixes for rate limit state storage. Keys are namespaced per
// API host: gqlfetch:rate_limit:<host>:<suffix>.
const (
	RedisKeyPrefix         = "gqlfetch:rate_limit"
	RedisKeyRemaining      = "remaining"
	RedisKeyResetTimestamp = "reset_timestamp"
	RedisKeyLastUpdate     = "last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all requests when the remaining budget falls
	// below this value.
	ThresholdCritical = 10

	// ThresholdWarning throttles requests below this value.
	ThresholdWarning = 100

	// ThresholdHealthy marks the state healthy at or above this value.
	ThresholdHealthy = 500
)

// State is the rate limit state of one API host.
type State struct {
	// Remaining is the number of requests (or points) left in the window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last refreshed from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until a response reported real numbers.
func defaultState() *State {
	now := time.Now()
	return &State{
		Remaining:  ThresholdHealthy,
		ResetAt:    now.Add(time.Hour),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, 0 if the
// reset time has passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
