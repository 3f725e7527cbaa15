package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect covers the SQL that differs between backends. Query text is always
// written with ? placeholders and passed through Rebind.
type Dialect interface {
	Name() string
	Rebind(query string) string
	// ShiftHours returns expr moved by a bound number of hours (one ? placeholder).
	ShiftHours(expr string) string
	// AsTimestamp promotes a date or timestamp expression to a timestamp.
	AsTimestamp(expr string) string
	// BaseTable names the persistent table, bypassing any temp shadow.
	BaseTable(table string) string
	// TempTable names the session-local shadow of table.
	TempTable(table string) string
	// ListTables returns a query yielding one table_name column.
	ListTables() (string, []any)
	// CreateSchema returns DDL run before migrations, or "".
	CreateSchema() string
}

type postgresDialect struct {
	schema string
}

// PostgresDialect returns the PostgreSQL dialect for tables in schema.
func PostgresDialect(schema string) Dialect {
	if schema == "" {
		schema = "public"
	}
	return postgresDialect{schema: schema}
}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (postgresDialect) ShiftHours(expr string) string {
	return fmt.Sprintf("(%s + make_interval(hours => CAST(? AS INTEGER)))", expr)
}

func (postgresDialect) AsTimestamp(expr string) string {
	return fmt.Sprintf("CAST(%s AS TIMESTAMP)", expr)
}

func (d postgresDialect) BaseTable(table string) string {
	return d.schema + "." + table
}

func (postgresDialect) TempTable(table string) string {
	return "pg_temp." + table
}

func (d postgresDialect) ListTables() (string, []any) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = ?", []any{d.schema}
}

func (d postgresDialect) CreateSchema() string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.schema
}

type sqliteDialect struct{}

// SQLiteDialect returns the SQLite dialect.
func SQLiteDialect() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) ShiftHours(expr string) string {
	return fmt.Sprintf("datetime(%s, ? || ' hours')", expr)
}

func (sqliteDialect) AsTimestamp(expr string) string {
	return fmt.Sprintf("datetime(%s)", expr)
}

func (sqliteDialect) BaseTable(table string) string { return "main." + table }

func (sqliteDialect) TempTable(table string) string { return "temp." + table }

func (sqliteDialect) ListTables() (string, []any) {
	return "SELECT name AS table_name FROM sqlite_master WHERE type IN ('table', 'view')", nil
}

func (sqliteDialect) CreateSchema() string { return "" }
