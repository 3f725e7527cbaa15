package db

import (
	"context"
	"errors"
	"fmt"
)

// ErrSourceUnavailable reports that required source tables are missing.
var ErrSourceUnavailable = errors.New("source unavailable")

// Querier runs parameterized SQL written with ? placeholders. Rows come back
// with their column order intact.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) error
}

// Store is the row store adapter shared by the PostgreSQL and SQLite backends.
type Store interface {
	Querier
	Dialect() Dialect
	// InTx runs fn inside one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(q Querier) error) error
	// ScopeSubject narrows subject-keyed tables to one subject. Calling it
	// again with the same id is a no-op.
	ScopeSubject(ctx context.Context, subjectID int64) error
	Ping(ctx context.Context) error
	Close()
}

// Options selects and configures a backend.
type Options struct {
	Driver   string
	URL      string
	Schema   string
	MaxConns int32
	MinConns int32
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "postgres":
		return OpenPostgres(ctx, opts)
	case "sqlite":
		return OpenSQLite(ctx, opts.URL)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
}
