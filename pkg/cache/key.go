package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
)

// Key identifies a cached GraphQL response.
type Key struct {
	// Endpoint is the GraphQL endpoint URL.
	Endpoint string

	// Query is the query text. Whitespace differences do not change the key.
	Query string

	// Variables are the query variables.
	Variables map[string]any

	// Scope separates responses fetched with different credentials.
	Scope string
}

// String generates a deterministic cache key string.
// Format: gql:host/path:sha256(scope, query, variables)
//
// Example:
//
//	gql:api.github.com/graphql:3f1c...e09a
func (k Key) String() string {
	parts := []string{"gql"}

	if endpoint := normalizeEndpoint(k.Endpoint); endpoint != "" {
		parts = append(parts, endpoint)
	}

	h := sha256.New()
	h.Write([]byte(k.Scope))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(strings.Fields(k.Query), " ")))
	h.Write([]byte{0})
	if len(k.Variables) > 0 {
		// encoding/json sorts map keys, so equal variables hash equally.
		if vars, err := json.Marshal(k.Variables); err == nil {
			h.Write(vars)
		}
	}
	parts = append(parts, hex.EncodeToString(h.Sum(nil)))

	return strings.Join(parts, ":")
}

func normalizeEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.Trim(endpoint, "/")
	}
	return u.Host + strings.TrimRight(u.Path, "/")
}
