package storage

import (
	"context"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/schema"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var tablesBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gqlfetch_tables_built_total",
	Help: "Table definitions issued from inferred schemas by outcome",
}, []string{"outcome"})

// Builder defines storage tables from inferred schemas.
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder creates a builder.
func NewBuilder() *Builder {
	return &Builder{logger: log.With().Str("component", "table-builder").Logger()}
}

// Columns converts a schema to the ordered column list of its table.
func Columns(s *schema.Schema) ([]Column, error) {
	columns := make([]Column, 0, s.Len())
	for _, f := range s.Fields {
		ct, err := ColumnTypeOf(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		columns = append(columns, Column{
			Name:    f.Name,
			Type:    ct,
			NotNull: f.NotNull || f.Required,
			Unique:  f.Unique,
			Default: f.Default,
			Comment: f.Comment,
		})
	}
	return columns, nil
}

// Build defines table in st with one column per schema field, in schema
// order. It is not idempotent: building an existing table returns the
// storage's error.
func (b *Builder) Build(ctx context.Context, st Storage, table string, s *schema.Schema) error {
	switch {
	case st == nil:
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return errdefs.Configuration("no storage bound")
	case !st.Connected():
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return errdefs.MissingResource("storage is not connected")
	case table == "":
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return errdefs.Configuration("table name is required")
	case s == nil || s.Len() == 0:
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return errdefs.Configuration("schema for table %q has no fields", table)
	}

	columns, err := Columns(s)
	if err != nil {
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := st.DefineTable(ctx, table, columns); err != nil {
		tablesBuiltTotal.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "define table %q", table)
	}

	tablesBuiltTotal.WithLabelValues("ok").Inc()
	b.logger.Info().
		Str("table", table).
		Int("columns", len(columns)).
		Str("schema", s.String()).
		Msg("Table defined")
	return nil
}
