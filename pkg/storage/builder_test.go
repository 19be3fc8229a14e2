package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/Sternrassler/gqlfetch/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStorage captures DefineTable calls.
type recordingStorage struct {
	connected bool
	table     string
	columns   []Column
	err       error
}

func (r *recordingStorage) DefineTable(_ context.Context, table string, columns []Column) error {
	r.table = table
	r.columns = columns
	return r.err
}

func (r *recordingStorage) Insert(context.Context, string, *record.Record) error { return nil }

func (r *recordingStorage) BulkInsert(_ context.Context, _ string, recs []*record.Record) (int, error) {
	return len(recs), nil
}

func (r *recordingStorage) Connected() bool { return r.connected }
func (r *recordingStorage) Close() error    { return nil }

func TestColumnTypeOf(t *testing.T) {
	tests := []struct {
		in   schema.Type
		want ColumnType
	}{
		{schema.TypeString, ColumnText},
		{schema.TypeInteger, ColumnInteger},
		{schema.TypeDouble, ColumnFloat},
		{schema.TypeBoolean, ColumnBoolean},
		{schema.TypeDatetime, ColumnTimestamp},
	}
	for _, tt := range tests {
		got, err := ColumnTypeOf(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ColumnTypeOf("uuid")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestBuilder_Build(t *testing.T) {
	s := &schema.Schema{Fields: []schema.Field{
		{Name: "identifier", Type: schema.TypeString, Unique: true, Required: true},
		{Name: "estimate", Type: schema.TypeDouble, Default: 0},
		{Name: "createdAt", Type: schema.TypeDatetime, Comment: "creation time"},
	}}
	st := &recordingStorage{connected: true}

	require.NoError(t, NewBuilder().Build(context.Background(), st, "issues", s))
	assert.Equal(t, "issues", st.table)
	assert.Equal(t, []Column{
		{Name: "identifier", Type: ColumnText, NotNull: true, Unique: true},
		{Name: "estimate", Type: ColumnFloat, Default: 0},
		{Name: "createdAt", Type: ColumnTimestamp, Comment: "creation time"},
	}, st.columns)
}

func TestBuilder_BuildErrors(t *testing.T) {
	s := &schema.Schema{Fields: []schema.Field{{Name: "a", Type: schema.TypeString}}}

	tests := []struct {
		name    string
		st      Storage
		table   string
		schema  *schema.Schema
		wantErr error
	}{
		{"nil storage", nil, "t", s, errdefs.ErrConfiguration},
		{"not connected", &recordingStorage{}, "t", s, errdefs.ErrMissingResource},
		{"empty table name", &recordingStorage{connected: true}, "", s, errdefs.ErrConfiguration},
		{"empty schema", &recordingStorage{connected: true}, "t", &schema.Schema{}, errdefs.ErrConfiguration},
		{"unknown type", &recordingStorage{connected: true}, "t", &schema.Schema{Fields: []schema.Field{{Name: "a", Type: "blob"}}}, ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().Build(context.Background(), tt.st, tt.table, tt.schema)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuilder_NilStoragePointer(t *testing.T) {
	var st *SQLStore
	err := NewBuilder().Build(context.Background(), st, "t",
		&schema.Schema{Fields: []schema.Field{{Name: "a", Type: schema.TypeString}}})
	assert.ErrorIs(t, err, errdefs.ErrMissingResource)
}

func TestBuilder_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Kind: SQLite, DSN: filepath.Join(t.TempDir(), "fetch.db")})
	require.NoError(t, err)
	defer store.Close()

	first, err := record.ParseRecord([]byte(`{"number": 12, "title": "Fix parser", "additions": 3.5, "merged": true, "createdAt": "2024-01-15T10:30:00Z"}`))
	require.NoError(t, err)
	second, err := record.ParseRecord([]byte(`{"number": "13", "title": "Docs", "additions": 2, "merged": "false", "createdAt": "2024-02-01T08:00:00Z", "labels": ["doc"]}`))
	require.NoError(t, err)
	records := []*record.Record{first, second}

	s, err := schema.Infer(records, schema.WithUnique("number"))
	require.NoError(t, err)
	assert.Equal(t, "number:integer, title:string, additions:double, merged:boolean, createdAt:datetime, labels:string", s.String())

	require.NoError(t, NewBuilder().Build(ctx, store, "pulls", s))

	n, err := store.BulkInsert(ctx, "pulls", records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := store.DB().QueryContext(ctx, `SELECT "number", "title", "additions", "merged", "labels" FROM "pulls" ORDER BY "number"`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		number    int64
		title     string
		additions float64
		merged    bool
		labels    *string
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.number, &r.title, &r.additions, &r.merged, &r.labels))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)

	assert.Equal(t, int64(12), got[0].number)
	assert.Equal(t, 3.5, got[0].additions)
	assert.True(t, got[0].merged)
	assert.Nil(t, got[0].labels)

	assert.Equal(t, int64(13), got[1].number)
	assert.Equal(t, "Docs", got[1].title)
	assert.False(t, got[1].merged)
	require.NotNil(t, got[1].labels)
	assert.Equal(t, `["doc"]`, *got[1].labels)

	// Building the same table again is not idempotent.
	assert.Error(t, NewBuilder().Build(ctx, store, "pulls", s))

	// Unique column rejects duplicates.
	_, err = store.BulkInsert(ctx, "pulls", []*record.Record{first})
	assert.Error(t, err)
}
