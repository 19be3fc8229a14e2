package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// headerPair names the remaining/reset headers of one API flavor.
type headerPair struct {
	remaining string
	reset     string
}

// knownHeaders is checked in order; the first pair whose remaining header is
// present wins.
var knownHeaders = []headerPair{
	{remaining: "X-RateLimit-Requests-Remaining", reset: "X-RateLimit-Requests-Reset"}, // Linear
	{remaining: "X-RateLimit-Remaining", reset: "X-RateLimit-Reset"},                   // GitHub
}

// ParseHeaders extracts the rate limit state from response headers. ok is
// false when the response carries no rate limit headers.
//
// Reset values are epoch timestamps. Values above 1e12 are taken as
// milliseconds (Linear), smaller ones as seconds (GitHub).
func ParseHeaders(headers http.Header, now time.Time) (state *State, ok bool, err error) {
	for _, pair := range knownHeaders {
		remainStr := headers.Get(pair.remaining)
		if remainStr == "" {
			continue
		}

		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", pair.remaining, err)
		}

		resetStr := headers.Get(pair.reset)
		if resetStr == "" {
			return nil, false, fmt.Errorf("%s header missing", pair.reset)
		}
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", pair.reset, err)
		}

		state := &State{
			Remaining:  remain,
			ResetAt:    resetTime(reset),
			LastUpdate: now,
		}
		state.UpdateHealth()
		return state, true, nil
	}
	return nil, false, nil
}

func resetTime(v int64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}
