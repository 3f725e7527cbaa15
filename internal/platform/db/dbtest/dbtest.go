// Package dbtest provides an in-memory, fully migrated SQLite store and
// fixture helpers for tests that exercise real source SQL.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/leozzy13/Health-Benchmark/internal/platform/db"
)

// TimeLayout is the text form timestamps are stored in.
const TimeLayout = "2006-01-02 15:04:05"

// NewStore opens an in-memory SQLite store with every migration applied.
func NewStore(t testing.TB) *db.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := db.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	if _, err := db.NewMigrator(s, nil).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// Insert adds one row. time.Time values are stored in TimeLayout.
func Insert(t testing.TB, s db.Store, table string, row map[string]any) {
	t.Helper()
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		switch v := row[c].(type) {
		case time.Time:
			args[i] = v.Format(TimeLayout)
		default:
			args[i] = v
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	if err := s.Exec(context.Background(), stmt, args...); err != nil {
		t.Fatalf("insert into %s: %v", table, err)
	}
}

// At parses a TimeLayout timestamp, failing the test on error.
func At(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(TimeLayout, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}
