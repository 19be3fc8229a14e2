// Package testutil provides testing utilities for the GraphQL clients.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// MockResponse defines a canned HTTP response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request is a GraphQL request received by the mock.
type Request struct {
	Query     string
	Variables map[string]any
	Header    http.Header
}

// Cursor returns the pagination cursor of the request: the "after" variable,
// or the after: "..." argument inlined in the query text.
func (r Request) Cursor() string {
	if v, ok := r.Variables["after"].(string); ok {
		return v
	}
	if m := afterArg.FindStringSubmatch(r.Query); m != nil {
		return m[1]
	}
	return ""
}

var afterArg = regexp.MustCompile(`after:\s*"([^"]*)"`)

// Handler answers a GraphQL request.
type Handler func(w http.ResponseWriter, req Request)

// connection serves a paginated connection for queries containing match.
type connection struct {
	match string
	path  string
	pages [][]map[string]any
}

// MockGraphQL is a configurable GraphQL server for testing. Responses are
// chosen in this order: queued responses, connections matched by query text,
// the custom handler, an empty data object.
type MockGraphQL struct {
	server      *httptest.Server
	mu          sync.RWMutex
	queue       []MockResponse
	connections []connection
	handler     Handler

	// Tracking
	RequestCount      int
	Requests          []Request
	LastRequestHeader http.Header
}

// NewMockGraphQL creates a new mock GraphQL server.
func NewMockGraphQL() *MockGraphQL {
	mock := &MockGraphQL{}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the GraphQL endpoint URL of the mock server.
func (m *MockGraphQL) URL() string {
	return m.server.URL + "/graphql"
}

// Close shuts down the mock server.
func (m *MockGraphQL) Close() {
	m.server.Close()
}

// Reset clears tracking counters and queued responses.
func (m *MockGraphQL) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
	m.LastRequestHeader = nil
	m.queue = nil
}

// Enqueue adds responses served, one per request, before anything else.
func (m *MockGraphQL) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// SetHandler sets the fallback handler.
func (m *MockGraphQL) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SetConnection serves a cursor-paginated connection at the dotted path
// under data for every query containing match. Page i (0-based) is served
// for cursor "cursor-i" (the first page for an empty cursor) and reports
// endCursor "cursor-(i+1)".
func (m *MockGraphQL) SetConnection(match, path string, pages ...[]map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append(m.connections, connection{match: match, path: path, pages: pages})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGraphQL) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequests returns a copy of the received requests.
func (m *MockGraphQL) GetRequests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Request, len(m.Requests))
	copy(out, m.Requests)
	return out
}

func (m *MockGraphQL) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := Request{
		Query:  gjson.GetBytes(body, "query").String(),
		Header: r.Header.Clone(),
	}
	if vars, ok := gjson.GetBytes(body, "variables").Value().(map[string]any); ok {
		req.Variables = vars
	}

	m.mu.Lock()
	m.RequestCount++
	m.Requests = append(m.Requests, req)
	m.LastRequestHeader = req.Header
	var queued *MockResponse
	if len(m.queue) > 0 {
		queued = &m.queue[0]
		m.queue = m.queue[1:]
	}
	conns := m.connections
	handler := m.handler
	m.mu.Unlock()

	if queued != nil {
		writeResponse(w, *queued)
		return
	}

	for _, c := range conns {
		if strings.Contains(req.Query, c.match) {
			c.serve(w, req)
			return
		}
	}

	if handler != nil {
		setDefaultHeaders(w)
		handler(w, req)
		return
	}

	writeResponse(w, NewDataResponse(`{}`))
}

func (c connection) serve(w http.ResponseWriter, req Request) {
	index := 0
	if cursor := req.Cursor(); cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "cursor-"))
		if err != nil || !strings.HasPrefix(cursor, "cursor-") || n < 0 || n >= len(c.pages) {
			writeResponse(w, NewErrorsResponse(fmt.Sprintf("invalid cursor %q", cursor)))
			return
		}
		index = n
	}

	var nodes []map[string]any
	if index < len(c.pages) {
		nodes = c.pages[index]
	}
	if nodes == nil {
		nodes = []map[string]any{}
	}

	var v any = map[string]any{
		"nodes": nodes,
		"pageInfo": map[string]any{
			"hasNextPage":     index < len(c.pages)-1,
			"hasPreviousPage": index > 0,
			"startCursor":     fmt.Sprintf("cursor-%d", index),
			"endCursor":       fmt.Sprintf("cursor-%d", index+1),
		},
	}
	segments := strings.Split(c.path, ".")
	for i := len(segments) - 1; i >= 0; i-- {
		v = map[string]any{segments[i]: v}
	}

	data, err := json.Marshal(v)
	if err != nil {
		writeResponse(w, NewServerErrorResponse())
		return
	}
	writeResponse(w, NewDataResponse(string(data)))
}

func setDefaultHeaders(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Remaining", "5000")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	setDefaultHeaders(w)
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// WriteData writes a successful response with the given data object.
func WriteData(w http.ResponseWriter, data string) {
	writeResponse(w, NewDataResponse(data))
}

// NewDataResponse creates a 200 OK response carrying data.
func NewDataResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data":` + data + `}`,
	}
}

// NewErrorsResponse creates a 200 OK response with GraphQL errors and null
// data.
func NewErrorsResponse(messages ...string) MockResponse {
	errs := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		errs = append(errs, map[string]any{"message": msg})
	}
	body, _ := json.Marshal(map[string]any{"data": nil, "errors": errs})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewPartialResponse creates a 200 OK response with data and GraphQL errors.
func NewPartialResponse(data string, message string) MockResponse {
	msg, _ := json.Marshal(message)
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data":` + data + `,"errors":[{"message":` + string(msg) + `}]}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with an
// exhausted budget.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Bad credentials"}`,
	}
}
