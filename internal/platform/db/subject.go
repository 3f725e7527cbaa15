package db

import (
	"context"
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// scopeSubject replaces each subject-keyed table present in the source with
// a temp table holding only that subject's rows. Temp tables shadow the base
// tables for unqualified names in both backends.
func scopeSubject(ctx context.Context, q Querier, d Dialect, subjectID int64) error {
	present, err := listTables(ctx, q, d)
	if err != nil {
		return err
	}

	for _, t := range SubjectScopedTables() {
		if !present[t] {
			continue
		}
		if !identPattern.MatchString(t) {
			return fmt.Errorf("invalid table identifier: %s", t)
		}
		if err := q.Exec(ctx, "DROP TABLE IF EXISTS "+d.TempTable(t)); err != nil {
			return fmt.Errorf("drop scoped %s: %w", t, err)
		}
		// PostgreSQL rejects bind parameters in CREATE TABLE AS.
		stmt := fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE subject_id = %d",
			t, d.BaseTable(t), subjectID)
		if err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("scope %s to subject %d: %w", t, subjectID, err)
		}
	}
	return nil
}

func listTables(ctx context.Context, q Querier, d Dialect) (map[string]bool, error) {
	query, args := d.ListTables()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		if name := r.String("table_name"); name != nil {
			present[*name] = true
		}
	}
	return present, nil
}
