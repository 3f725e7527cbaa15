package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BulkLoader is implemented by stores that accept raw CSV bodies.
type BulkLoader interface {
	CopyCSV(ctx context.Context, table string, columns []string, body io.Reader) (int64, error)
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func NewPool(ctx context.Context, databaseURL, schema string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	if schema != "" {
		if !identPattern.MatchString(schema) {
			return nil, fmt.Errorf("invalid schema name %q", schema)
		}
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresStore serves queries from a pgx pool. Once a subject is scoped all
// queries run on one pinned connection, since temp tables are per session.
type PostgresStore struct {
	pool    *pgxpool.Pool
	dialect Dialect

	mu      sync.Mutex
	pinned  *pgxpool.Conn
	subject *int64
}

// OpenPostgres creates the pool and wraps it as a Store.
func OpenPostgres(ctx context.Context, opts Options) (*PostgresStore, error) {
	pool, err := NewPool(ctx, opts.URL, opts.Schema, opts.MaxConns, opts.MinConns)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, dialect: PostgresDialect(opts.Schema)}, nil
}

func (s *PostgresStore) Dialect() Dialect { return s.dialect }

func (s *PostgresStore) target() pgxQuerier {
	if s.pinned != nil {
		return s.pinned
	}
	return s.pool
}

func (s *PostgresStore) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pgQuery(ctx, s.target(), s.dialect, query, args)
}

func (s *PostgresStore) Exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.target().Exec(ctx, s.dialect.Rebind(query), args...)
	return err
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b pgxBeginner = s.pool
	if s.pinned != nil {
		b = s.pinned
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(pgSession{q: tx, d: s.dialect}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ScopeSubject(ctx context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subject != nil && *s.subject == subjectID {
		return nil
	}
	if s.pinned == nil {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		s.pinned = conn
	}
	if err := scopeSubject(ctx, pgSession{q: s.pinned, d: s.dialect}, s.dialect, subjectID); err != nil {
		s.subject = nil
		return err
	}
	id := subjectID
	s.subject = &id
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stats reports pool statistics for the health endpoint.
func (s *PostgresStore) Stats() *PoolStats {
	return GetPoolStats(s.pool)
}

func (s *PostgresStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned != nil {
		s.pinned.Release()
		s.pinned = nil
	}
	s.subject = nil
	s.pool.Close()
}

// CopyCSV streams a headerless CSV body into table with COPY FROM STDIN.
func (s *PostgresStore) CopyCSV(ctx context.Context, table string, columns []string, body io.Reader) (int64, error) {
	if !identPattern.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	for _, c := range columns {
		if !identPattern.MatchString(c) {
			return 0, fmt.Errorf("invalid column name %q in %s", c, table)
		}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stmt := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv)",
		s.dialect.BaseTable(table), strings.Join(columns, ", "))
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, body, stmt)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

type pgSession struct {
	q pgxQuerier
	d Dialect
}

func (p pgSession) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return pgQuery(ctx, p.q, p.d, query, args)
}

func (p pgSession) Exec(ctx context.Context, query string, args ...any) error {
	_, err := p.q.Exec(ctx, p.d.Rebind(query), args...)
	return err
}

func pgQuery(ctx context.Context, q pgxQuerier, d Dialect, query string, args []any) ([]Row, error) {
	rows, err := q.Query(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalizePG(v)
		}
		out = append(out, Row{Columns: cols, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalizePG maps pgtype values onto the plain Go types Row understands.
// Intervals become seconds.
func normalizePG(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Interval:
		if !x.Valid {
			return nil
		}
		return float64(x.Microseconds)/1e6 + float64(x.Days)*86400 + float64(x.Months)*30*86400
	}
	return v
}
