package artifacts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

// ErrUnsafeOutputPath is returned when a directory slated for removal does
// not sit directly under the output root.
var ErrUnsafeOutputPath = errors.New("unsafe output path")

// writeFile replaces path atomically so a crash never leaves a torn file.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v as two-space indented JSON with a trailing newline.
func WriteJSON(path string, v any) error {
	b, err := canonjson.Indent(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, b)
}

// WriteJSONL writes one canonical JSON object per line.
func WriteJSONL[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for i, row := range rows {
		b, err := canonjson.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode %s row %d: %w", filepath.Base(path), i+1, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return writeFile(path, buf.Bytes())
}

// WriteUnlinkedNotes writes the radiology sidecar. Nothing is written when
// rows is empty.
func WriteUnlinkedNotes[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return WriteJSON(path, struct {
		RadiologyNotes []T `json:"radiology_notes"`
	}{rows})
}

// ResetPatientDir removes a previous run's output for the subject.
func (l Layout) ResetPatientDir(subjectID int64) error {
	return removeChild(l.Root, l.PatientDir(subjectID))
}

// removeChild deletes dir, which must be a direct child of root.
func removeChild(root, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve output root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if abs == absRoot || filepath.Dir(abs) != absRoot {
		return fmt.Errorf("%w: refusing to delete %s", ErrUnsafeOutputPath, dir)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// WriteCohortCSV writes subject_id,n_admissions rows with a header and
// CRLF line endings.
func WriteCohortCSV(path string, rows []record.SubjectAdmissionCount) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	w.Write([]string{"subject_id", "n_admissions"})
	for _, r := range rows {
		w.Write([]string{strconv.FormatInt(r.SubjectID, 10), strconv.FormatInt(r.NAdmissions, 10)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode cohort csv: %w", err)
	}
	return writeFile(path, buf.Bytes())
}
