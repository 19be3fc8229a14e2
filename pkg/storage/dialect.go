package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported database kinds.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// dialect holds what differs between the SQL databases.
type dialect struct {
	name   string
	driver string // database/sql driver name
	types  map[ColumnType]string
	// uniqueText replaces the text type for unique columns, for databases
	// that cannot index unbounded text.
	uniqueText string
	// inlineComment puts column comments in the column definition.
	inlineComment bool
	// commentStatement adds COMMENT ON COLUMN statements after CREATE TABLE.
	commentStatement bool
	dollarParams     bool
	backtickQuote    bool
}

var dialects = map[string]*dialect{
	SQLite: {
		name:   SQLite,
		driver: "sqlite",
		types: map[ColumnType]string{
			ColumnText:      "TEXT",
			ColumnInteger:   "INTEGER",
			ColumnFloat:     "REAL",
			ColumnBoolean:   "BOOLEAN",
			ColumnTimestamp: "TIMESTAMP",
		},
	},
	Postgres: {
		name:   Postgres,
		driver: "pgx",
		types: map[ColumnType]string{
			ColumnText:      "TEXT",
			ColumnInteger:   "BIGINT",
			ColumnFloat:     "DOUBLE PRECISION",
			ColumnBoolean:   "BOOLEAN",
			ColumnTimestamp: "TIMESTAMPTZ",
		},
		commentStatement: true,
		dollarParams:     true,
	},
	MySQL: {
		name:   MySQL,
		driver: "mysql",
		types: map[ColumnType]string{
			ColumnText:      "TEXT",
			ColumnInteger:   "BIGINT",
			ColumnFloat:     "DOUBLE",
			ColumnBoolean:   "BOOLEAN",
			ColumnTimestamp: "DATETIME(6)",
		},
		uniqueText:    "VARCHAR(255)",
		inlineComment: true,
		backtickQuote: true,
	},
}

func dialectFor(kind string) (*dialect, error) {
	d, ok := dialects[strings.ToLower(kind)]
	if !ok {
		return nil, errdefs.Configuration("unsupported database %q", kind)
	}
	return d, nil
}

func (d *dialect) quote(ident string) string {
	if d.backtickQuote {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d *dialect) placeholder(i int) string {
	if d.dollarParams {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *dialect) columnType(c Column) string {
	if c.Type == ColumnText && c.Unique && d.uniqueText != "" {
		return d.uniqueText
	}
	return d.types[c.Type]
}

// createTable returns the statements defining table.
func (d *dialect) createTable(table string, columns []Column) ([]string, error) {
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		sqlType := d.columnType(c)
		if sqlType == "" {
			return nil, fmt.Errorf("column %q: %w %q", c.Name, ErrUnknownType, c.Type)
		}

		def := d.quote(c.Name) + " " + sqlType
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		if c.Default != nil {
			lit, err := d.literal(c.Default, c.Type)
			if err != nil {
				return nil, fmt.Errorf("column %q default: %w", c.Name, err)
			}
			def += " DEFAULT " + lit
		}
		if d.inlineComment && c.Comment != "" {
			def += " COMMENT " + quoteLiteral(c.Comment)
		}
		defs = append(defs, def)
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(table), strings.Join(defs, ", ")),
	}
	if d.commentStatement {
		for _, c := range columns {
			if c.Comment == "" {
				continue
			}
			stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
				d.quote(table), d.quote(c.Name), quoteLiteral(c.Comment)))
		}
	}
	return stmts, nil
}

// literal renders a default value of the given column type.
func (d *dialect) literal(v any, t ColumnType) (string, error) {
	coerced, err := coerce(v, t)
	if err != nil {
		return "", err
	}
	switch val := coerced.(type) {
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float64:
		return fmt.Sprintf("%g", val), nil
	case string:
		return quoteLiteral(val), nil
	case time.Time:
		return quoteLiteral(val.Format(time.RFC3339)), nil
	default:
		return quoteLiteral(fmt.Sprint(coerced)), nil
	}
}

// insert returns the INSERT statement for the given columns.
func (d *dialect) insert(table string, columns []Column) string {
	names := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.quote(c.Name)
		params[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(table), strings.Join(names, ", "), strings.Join(params, ", "))
}
