package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRow_Accessors(t *testing.T) {
	r := Row{
		Columns: []string{"id", "num", "text_num", "ts", "ts_text", "blank", "nothing", "day"},
		Values: []any{
			int64(7), 2.5, "42", time.Date(2180, 5, 6, 22, 23, 0, 0, time.UTC),
			"2180-05-07 01:02:03", "", nil, "2180-05-06",
		},
	}

	require.Equal(t, int64(7), *r.Int64("id"))
	require.Equal(t, 2.5, *r.Float64("num"))
	require.Equal(t, int64(42), *r.Int64("text_num"))
	require.Equal(t, "7", *r.String("id"))
	require.Nil(t, r.Int64("blank"))
	require.Nil(t, r.String("nothing"))
	require.Nil(t, r.Int64("num"), "non-integral float is not an int")
	require.Nil(t, r.Value("missing"))

	ts := r.Time("ts_text")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2180, 5, 7, 1, 2, 3, 0, time.UTC), *ts)

	day := r.Time("day")
	require.NotNil(t, day)
	require.Equal(t, 0, day.Hour())
	require.Equal(t, "2180-05-06 22:23:00", *r.String("ts"))
}

func TestRow_CheckedTime(t *testing.T) {
	r := Row{
		Columns: []string{"good", "bad", "blank", "nothing"},
		Values:  []any{"2180-05-07 01:02:03", "05/07/2180 at noon", "  ", nil},
	}

	got, err := r.CheckedTime("good")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = r.CheckedTime("bad")
	require.ErrorIs(t, err, ErrUnparsedTime)
	require.ErrorContains(t, err, "bad")
	require.Nil(t, got)
	require.Nil(t, r.Time("bad"))

	for _, col := range []string{"blank", "nothing", "missing"} {
		got, err = r.CheckedTime(col)
		require.NoError(t, err, col)
		require.Nil(t, got, col)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := PostgresDialect("mimic")
	got := d.Rebind("SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?")
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2", got)
	require.Equal(t, "mimic.hosp_labevents", d.BaseTable("hosp_labevents"))
	require.Equal(t, "pg_temp.hosp_labevents", d.TempTable("hosp_labevents"))
	require.Equal(t, "(a.admittime + make_interval(hours => CAST(? AS INTEGER)))", d.ShiftHours("a.admittime"))
}

func TestSQLiteDialect_ShiftHours(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	d := s.Dialect()

	rows, err := s.Query(ctx, "SELECT "+d.ShiftHours("'2180-05-06 22:00:00'")+" AS shifted", -3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2180-05-06 19:00:00", *rows[0].String("shifted"))

	rows, err = s.Query(ctx, "SELECT "+d.AsTimestamp("'2180-05-06'")+" AS ts")
	require.NoError(t, err)
	require.Equal(t, "2180-05-06 00:00:00", *rows[0].String("ts"))
}

func TestCheckTables_MissingIsSourceUnavailable(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.Exec(ctx, "CREATE TABLE hosp_admissions (subject_id BIGINT)"))

	err := CheckTables(ctx, s)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSourceUnavailable))
	require.Contains(t, err.Error(), "hosp_labevents")
	require.NotContains(t, err.Error(), "hosp_provider")
}

func TestScopeSubject_ShadowsBaseTables(t *testing.T) {
	ctx := context.Background()
	s := migrated(t)

	for _, stmt := range []string{
		"INSERT INTO hosp_admissions (subject_id, hadm_id, admittime) VALUES (1, 10, '2180-01-01 00:00:00')",
		"INSERT INTO hosp_admissions (subject_id, hadm_id, admittime) VALUES (1, 11, '2181-01-01 00:00:00')",
		"INSERT INTO hosp_admissions (subject_id, hadm_id, admittime) VALUES (2, 20, '2182-01-01 00:00:00')",
		"INSERT INTO hosp_d_labitems (itemid, label) VALUES (50912, 'Creatinine')",
	} {
		require.NoError(t, s.Exec(ctx, stmt))
	}

	count := func() int {
		rows, err := s.Query(ctx, "SELECT COUNT(*) AS n FROM hosp_admissions")
		require.NoError(t, err)
		return int(*rows[0].Int64("n"))
	}
	require.Equal(t, 3, count())

	require.NoError(t, s.ScopeSubject(ctx, 1))
	require.Equal(t, 2, count())

	require.NoError(t, s.ScopeSubject(ctx, 1), "repeat scope is a no-op")
	require.Equal(t, 2, count())

	rows, err := s.Query(ctx, "SELECT label FROM hosp_d_labitems")
	require.NoError(t, err)
	require.Len(t, rows, 1, "dictionary tables stay global")

	require.NoError(t, s.ScopeSubject(ctx, 2))
	require.Equal(t, 1, count())

	rows, err = s.Query(ctx, "SELECT COUNT(*) AS n FROM main.hosp_admissions")
	require.NoError(t, err)
	require.Equal(t, int64(3), *rows[0].Int64("n"))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := migrated(t)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q Querier) error {
		if err := q.Exec(ctx, "INSERT INTO hosp_patients (subject_id, gender) VALUES (?, ?)", 1, "F"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.Query(ctx, "SELECT subject_id FROM hosp_patients")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"})
	require.Error(t, err)
}
