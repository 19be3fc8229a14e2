// Package gql provides the GraphQL HTTP client used by the API adapters,
// with retry, rate limiting and an optional response cache.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/cache"
	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/ratelimit"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Prometheus metrics for GraphQL client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlfetch_requests_total",
		Help: "Total GraphQL requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gqlfetch_request_duration_seconds",
		Help:    "GraphQL request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlfetch_errors_total",
		Help: "Total GraphQL errors by class",
	}, []string{"class"})
)

// Client is a GraphQL HTTP client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       cache.Store
	config      Config
	host        string
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the GraphQL endpoint URL (REQUIRED).
	Endpoint string

	// Token is sent as "Authorization: Bearer <token>" (GitHub).
	Token string

	// Key is sent as "Authorization: <key>" (Linear API keys).
	// Ignored when Token is set.
	Key string

	// User-Agent header
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Redis client for shared rate limit state and the response cache.
	// Optional: without it both live in process memory.
	Redis *redis.Client

	// Caching. CacheTTL 0 disables the response cache.
	CacheTTL        time.Duration
	MemoryCacheSize int

	// Retry overrides. Zero keeps the per-class defaults.
	MaxAttempts    int
	InitialBackoff time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:        endpoint,
		UserAgent:       "gqlfetch/1.0",
		Timeout:         30 * time.Second,
		MemoryCacheSize: cache.DefaultMemorySize,
	}
}

// New creates a new GraphQL client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errdefs.Configuration("graphql endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, errdefs.Configuration("invalid graphql endpoint %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "gqlfetch/1.0"
	}

	logger := log.With().Str("component", "gql-client").Str("endpoint", cfg.Endpoint).Logger()

	var store cache.Store
	if cfg.CacheTTL > 0 {
		if cfg.Redis != nil {
			store = cache.NewManager(cfg.Redis)
		} else {
			mem, err := cache.NewMemory(cfg.MemoryCacheSize)
			if err != nil {
				return nil, fmt.Errorf("create memory cache: %w", err)
			}
			store = mem
		}
	}

	return &Client{
		httpClient:  newHTTPClient(cfg.Timeout),
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cache:       store,
		config:      cfg,
		host:        u.Host,
		logger:      logger,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		Timeout:   timeout,
	}
}

// Clone returns a client with the same configuration, rate limiter and cache
// but its own HTTP transport and connection pool. Use it for requests issued
// while another request sequence on c is still in progress.
func (c *Client) Clone() *Client {
	clone := *c
	clone.httpClient = newHTTPClient(c.config.Timeout)
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		clone.httpClient.Transport = transport.Clone()
	}
	clone.logger = c.logger.With().Bool("clone", true).Logger()
	return &clone
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Request is a GraphQL request.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	// Data is the data object, nil when the response carried null data.
	Data   *record.Record
	Errors []Error
	// StatusCode is the HTTP status, 0 when served from cache.
	StatusCode int
	Cached     bool
}

// Do sends a GraphQL request with rate limiting, caching and retries.
// GraphQL errors next to data are returned in Response.Errors; errors with
// null data fail with a query class TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.host).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx, c.host)
	if err != nil {
		if isCancelled(err) {
			return nil, &TransportError{Class: ErrorClassNetwork, Message: "request cancelled", Err: err}
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, &TransportError{Class: ErrorClassRateLimit, Message: "rate limit check", Err: err}
	}
	if !allowed {
		c.logger.Warn().Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(c.host, "rate_limited").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, &TransportError{Class: ErrorClassRateLimit, Message: "blocked locally", Err: ErrRateLimited}
	}

	// Step 2: Check Cache
	cacheKey := cache.Key{
		Endpoint:  c.config.Endpoint,
		Query:     req.Query,
		Variables: req.Variables,
		Scope:     c.authScope(),
	}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if resp, perr := parseEnvelope(entry.Data); perr == nil {
				resp.Cached = true
				c.logger.Debug().Dur("ttl", entry.TTL()).Msg("Serving response from cache")
				return resp, nil
			}
		case err != cache.ErrCacheMiss:
			c.logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Class: ErrorClassClient, Message: "encode request", Err: err}
	}

	// Step 3: Execute HTTP Request with Retry Logic
	var (
		body   []byte
		status int
	)
	limits := retryLimits{maxAttempts: c.config.MaxAttempts, initialBackoff: c.config.InitialBackoff}
	retryErr := retryWithBackoff(ctx, limits, func() (ErrorClass, error) {
		var attemptErr *TransportError
		body, status, attemptErr = c.send(ctx, payload)
		if attemptErr != nil {
			errorsTotal.WithLabelValues(string(attemptErr.Class)).Inc()
			return attemptErr.Class, attemptErr
		}
		return "", nil
	})
	if retryErr != nil {
		if isCancelled(retryErr) {
			return nil, &TransportError{Class: ErrorClassNetwork, Message: "request cancelled", Err: retryErr}
		}
		if te, ok := retryErr.(*TransportError); ok {
			return nil, te
		}
		// exhausted: keep the last TransportError reachable through the chain
		return nil, &TransportError{
			StatusCode: status,
			Class:      classOf(retryErr),
			Message:    "retry attempts exhausted",
			Err:        retryErr,
		}
	}

	// Step 4: Decode the envelope
	resp, err := parseEnvelope(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return nil, &TransportError{StatusCode: status, Class: ErrorClassServer, Message: "invalid response body", Err: err}
	}
	resp.StatusCode = status

	if len(resp.Errors) > 0 {
		c.logger.Debug().
			Int("errors", len(resp.Errors)).
			Str("first_error", resp.Errors[0].Message).
			Bool("has_data", resp.Data != nil).
			Msg("GraphQL response carries errors")
		if resp.Data == nil {
			errorsTotal.WithLabelValues(string(ErrorClassQuery)).Inc()
			return nil, queryError(resp)
		}
	}

	// Step 5: Update Cache on clean success
	if c.cache != nil && len(resp.Errors) == 0 {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// send performs one HTTP attempt.
func (c *Client) send(ctx context.Context, payload []byte) ([]byte, int, *TransportError) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &TransportError{Class: ErrorClassClient, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	switch {
	case c.config.Token != "":
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	case c.config.Key != "":
		httpReq.Header.Set("Authorization", c.config.Key)
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug().Int("bytes", len(payload)).Msg("Executing GraphQL request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		requestsTotal.WithLabelValues(c.host, "network_error").Inc()
		return nil, 0, &TransportError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(ctx, c.host, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(c.host, "network_error").Inc()
		return nil, resp.StatusCode, &TransportError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read response", Err: err}
	}
	requestsTotal.WithLabelValues(c.host, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("GraphQL request error")
		msg := resp.Status
		if m := gjson.GetBytes(body, "message"); m.Exists() {
			msg = m.String()
		}
		return nil, resp.StatusCode, &TransportError{StatusCode: resp.StatusCode, Class: class, Message: msg}
	}

	return body, resp.StatusCode, nil
}

// Execute runs query and returns the data object. Any GraphQL error fails
// the call.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*record.Record, error) {
	resp, err := c.Do(ctx, Request{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryError(resp)
	}
	if resp.Data == nil {
		return record.New(), nil
	}
	return resp.Data, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the rate limit tracker (for testing).
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// authScope separates cache entries per credential without storing it.
func (c *Client) authScope() string {
	switch {
	case c.config.Token != "":
		return cache.Key{Query: c.config.Token}.String()
	case c.config.Key != "":
		return cache.Key{Query: c.config.Key}.String()
	}
	return ""
}

// parseEnvelope decodes {"data": ..., "errors": [...]}.
func parseEnvelope(body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, record.ErrInvalidJSON
	}
	env := gjson.ParseBytes(body)

	resp := &Response{}
	if data := env.Get("data"); data.IsObject() {
		if rec, ok := record.FromResult(data).(*record.Record); ok {
			resp.Data = rec
		}
	}
	env.Get("errors").ForEach(func(_, e gjson.Result) bool {
		gqlErr := Error{
			Message: e.Get("message").String(),
			Type:    e.Get("type").String(),
		}
		e.Get("path").ForEach(func(_, p gjson.Result) bool {
			gqlErr.Path = append(gqlErr.Path, p.String())
			return true
		})
		resp.Errors = append(resp.Errors, gqlErr)
		return true
	})
	return resp, nil
}

func queryError(resp *Response) *TransportError {
	msg := "graphql errors"
	if len(resp.Errors) > 0 {
		msg = resp.Errors[0].Message
	}
	return &TransportError{
		StatusCode: resp.StatusCode,
		Class:      ErrorClassQuery,
		Message:    msg,
		Errors:     resp.Errors,
	}
}

func classOf(err error) ErrorClass {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class
	}
	return ""
}
