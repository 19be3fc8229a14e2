//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/Sternrassler/gqlfetch/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a Postgres container and returns its database URL.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gqlfetch",
			"POSTGRES_PASSWORD": "gqlfetch",
			"POSTGRES_DB":       "gqlfetch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://gqlfetch:gqlfetch@%s:%s/gqlfetch?sslmode=disable", host, port.Port())
}

func TestIntegration_PostgresBuildAndInsert(t *testing.T) {
	ctx := context.Background()

	cfg, err := ParseURL(setupPostgres(t))
	require.NoError(t, err)
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	records := []*record.Record{
		record.FromPairs("identifier", "ENG-1", "priority", 2, "estimate", 1.5, "archived", false, "createdAt", "2024-01-15T10:30:00Z"),
		record.FromPairs("identifier", "ENG-2", "priority", "3", "estimate", 3, "archived", "true", "createdAt", "2024-01-16"),
	}
	s, err := schema.Infer(records, schema.WithUnique("identifier"), schema.WithComment("identifier", "Linear issue key"))
	require.NoError(t, err)

	require.NoError(t, NewBuilder().Build(ctx, store, "issues", s))

	n, err := store.BulkInsert(ctx, "issues", records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var comment string
	err = store.DB().QueryRowContext(ctx,
		`SELECT col_description('issues'::regclass, 1)`).Scan(&comment)
	require.NoError(t, err)
	assert.Equal(t, "Linear issue key", comment)

	var (
		priority int64
		archived bool
		created  time.Time
	)
	err = store.DB().QueryRowContext(ctx,
		`SELECT priority, archived, "createdAt" FROM issues WHERE identifier = $1`, "ENG-2").
		Scan(&priority, &archived, &created)
	require.NoError(t, err)
	assert.Equal(t, int64(3), priority)
	assert.True(t, archived)
	assert.Equal(t, 2024, created.Year())

	assert.Error(t, NewBuilder().Build(ctx, store, "issues", s))
}
