package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore serves queries from a single-connection SQLite database, which
// keeps temp tables and ":memory:" databases alive for the store's lifetime.
type SQLiteStore struct {
	db      *sql.DB
	dialect Dialect

	mu      sync.Mutex
	subject *int64
}

// OpenSQLite opens path (a file or ":memory:").
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: conn, dialect: SQLiteDialect()}, nil
}

func (s *SQLiteStore) Dialect() Dialect { return s.dialect }

func (s *SQLiteStore) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return sqlQuery(ctx, s.db, query, args)
}

func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqlSession{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ScopeSubject(ctx context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subject != nil && *s.subject == subjectID {
		return nil
	}
	if err := scopeSubject(ctx, s, s.dialect, subjectID); err != nil {
		s.subject = nil
		return err
	}
	id := subjectID
	s.subject = &id
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlSession struct {
	q sqlQuerier
}

func (s sqlSession) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return sqlQuery(ctx, s.q, query, args)
}

func (s sqlSession) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.q.ExecContext(ctx, query, args...)
	return err
}

func sqlQuery(ctx context.Context, q sqlQuerier, query string, args []any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, Row{Columns: cols, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
