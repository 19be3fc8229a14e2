// Package storage turns inferred schemas into SQL tables and loads records
// into them.
package storage

import (
	"context"

	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/Sternrassler/gqlfetch/pkg/schema"
	"github.com/go-faster/errors"
)

// ColumnType is the storage type of a column, independent of the SQL dialect.
type ColumnType string

const (
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnFloat     ColumnType = "float"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
)

// ErrUnknownType is returned for a field type with no column mapping.
var ErrUnknownType = errors.New("unknown field type")

// ColumnTypeOf maps an inferred field type to its column type.
func ColumnTypeOf(t schema.Type) (ColumnType, error) {
	switch t {
	case schema.TypeString:
		return ColumnText, nil
	case schema.TypeInteger:
		return ColumnInteger, nil
	case schema.TypeDouble:
		return ColumnFloat, nil
	case schema.TypeBoolean:
		return ColumnBoolean, nil
	case schema.TypeDatetime:
		return ColumnTimestamp, nil
	}
	return "", errors.Wrapf(ErrUnknownType, "%q", t)
}

// Column is one column of a table definition.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	Unique  bool
	Default any
	Comment string
}

// Storage is a table store records can be loaded into.
type Storage interface {
	// DefineTable creates table with the given columns, in order. Defining
	// an existing table fails.
	DefineTable(ctx context.Context, table string, columns []Column) error

	// Insert stores one record in a defined table.
	Insert(ctx context.Context, table string, rec *record.Record) error

	// BulkInsert stores records in one transaction and returns the number
	// of rows written.
	BulkInsert(ctx context.Context, table string, recs []*record.Record) (int, error)

	// Connected reports whether the store has a live connection.
	Connected() bool

	Close() error
}
