package record

import (
	"bytes"
	"fmt"
	"time"
)

// ISOLayout is how every source timestamp is rendered. Source times are
// de-identified wall clock values, so no zone is claimed.
const ISOLayout = "2006-01-02T15:04:05"

// Timestamp is a zone-less source timestamp. Date-only columns are promoted
// to midnight.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp, dropping any zone.
func At(t time.Time) *Timestamp {
	return &Timestamp{Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

func (t Timestamp) String() string {
	return t.Time.Format(ISOLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp must be a JSON string, got %s", data)
	}
	parsed, err := time.Parse(ISOLayout, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// ISO renders t or returns nil.
func ISO(t *Timestamp) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

// CompareTime orders timestamps ascending with nil last.
func CompareTime(a, b *Timestamp) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Time.Compare(b.Time)
}

// CompareInt orders integers ascending with nil last.
func CompareInt(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
