package db

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const insertBatchSize = 5000

// LoadDirs maps each source module to the directory holding its export.
type LoadDirs struct {
	Hosp string
	ICU  string
	Note string
}

func (d LoadDirs) dir(module string) string {
	switch module {
	case ModuleHosp:
		return d.Hosp
	case ModuleICU:
		return d.ICU
	case ModuleNote:
		return d.Note
	}
	return ""
}

// LoadResult reports one table import.
type LoadResult struct {
	Table   string
	Path    string
	Rows    int64
	Skipped bool
}

// Loader imports <dir>/<file>.csv or <dir>/<file>.csv.gz exports into the
// migrated source tables.
type Loader struct {
	store       Store
	dirs        LoadDirs
	log         zerolog.Logger
	parallelism int
}

func NewLoader(store Store, dirs LoadDirs, log zerolog.Logger) *Loader {
	return &Loader{store: store, dirs: dirs, log: log, parallelism: 4}
}

// Load imports the named tables, or every registered table when names is
// empty. Missing optional exports are skipped; missing required ones fail
// with ErrSourceUnavailable. PostgreSQL loads tables in parallel over COPY.
func (l *Loader) Load(ctx context.Context, names []string) ([]LoadResult, error) {
	selected, err := l.selectTables(names)
	if err != nil {
		return nil, err
	}

	results := make([]LoadResult, len(selected))
	bulk, canCopy := l.store.(BulkLoader)
	if !canCopy {
		for i, t := range selected {
			res, err := l.loadTable(ctx, t, nil)
			if err != nil {
				return results[:i], err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i, t := range selected {
		g.Go(func() error {
			res, err := l.loadTable(gctx, t, bulk)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loader) selectTables(names []string) ([]Table, error) {
	if len(names) == 0 {
		return Tables(), nil
	}
	out := make([]Table, 0, len(names))
	for _, n := range names {
		t, ok := LookupTable(strings.TrimSpace(n))
		if !ok {
			return nil, fmt.Errorf("unknown table %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *Loader) loadTable(ctx context.Context, t Table, bulk BulkLoader) (LoadResult, error) {
	path, err := l.resolve(t)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && t.Optional {
			l.log.Info().Str("table", t.Name).Msg("optional export not found, skipping")
			return LoadResult{Table: t.Name, Skipped: true}, nil
		}
		return LoadResult{}, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, t.Name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var body io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return LoadResult{}, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		body = gz
	}

	l.log.Info().Str("table", t.Name).Str("path", path).Msg("loading table")

	var n int64
	if bulk != nil {
		n, err = copyCSV(ctx, bulk, t.Name, body)
	} else {
		n, err = insertCSV(ctx, l.store, t.Name, body)
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s from %s: %w", t.Name, path, err)
	}

	l.log.Info().Str("table", t.Name).Int64("rows", n).Msg("table loaded")
	return LoadResult{Table: t.Name, Path: path, Rows: n}, nil
}

func (l *Loader) resolve(t Table) (string, error) {
	dir := l.dirs.dir(t.Module)
	for _, name := range []string{t.File + ".csv", t.File + ".csv.gz"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s{.csv,.csv.gz} in %s: %w", t.File, dir, fs.ErrNotExist)
}

// copyCSV consumes the header line, then streams the remaining body to COPY.
func copyCSV(ctx context.Context, bulk BulkLoader, table string, body io.Reader) (int64, error) {
	br := bufio.NewReaderSize(body, 1<<20)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read header: %w", err)
	}
	columns, err := parseHeader(line)
	if err != nil {
		return 0, err
	}
	return bulk.CopyCSV(ctx, table, columns, br)
}

// insertCSV inserts rows in transactional batches. Empty fields become NULL.
func insertCSV(ctx context.Context, q Store, table string, body io.Reader) (int64, error) {
	r := csv.NewReader(body)
	r.ReuseRecord = true
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	columns, err := parseHeader(strings.Join(header, ","))
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	var total int64
	done := false
	for !done {
		err := q.InTx(ctx, func(tx Querier) error {
			for i := 0; i < insertBatchSize; i++ {
				rec, err := r.Read()
				if errors.Is(err, io.EOF) {
					done = true
					return nil
				}
				if err != nil {
					return fmt.Errorf("read row %d: %w", total+1, err)
				}
				args := make([]any, len(columns))
				for j := range columns {
					if j < len(rec) && rec[j] != "" {
						args[j] = rec[j]
					}
				}
				if err := tx.Exec(ctx, stmt, args...); err != nil {
					return fmt.Errorf("insert row %d: %w", total+1, err)
				}
				total++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseHeader(line string) ([]string, error) {
	rec, err := csv.NewReader(strings.NewReader(strings.TrimSpace(line))).Read()
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	cols := make([]string, len(rec))
	for i, c := range rec {
		c = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		if !identPattern.MatchString(c) {
			return nil, fmt.Errorf("invalid column name %q in header", c)
		}
		cols[i] = c
	}
	return cols, nil
}
