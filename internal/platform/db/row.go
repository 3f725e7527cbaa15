package db

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is one result row. Accessors convert the driver's value into a typed
// pointer, returning nil for NULL, blank, or missing columns.
type Row struct {
	Columns []string
	Values  []any
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// Value returns the raw value of the named column.
func (r Row) Value(name string) any {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i]
		}
	}
	return nil
}

// Map returns the row as a column-keyed map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

func (r Row) String(name string) *string {
	var s string
	switch v := r.Value(name).(type) {
	case nil:
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int:
		s = strconv.Itoa(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	default:
		return nil
	}
	return &s
}

func (r Row) Int64(name string) *int64 {
	var n int64
	switch v := r.Value(name).(type) {
	case nil:
		return nil
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int16:
		n = int64(v)
	case int:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		n = int64(v)
	case bool:
		if v {
			n = 1
		}
	case string, []byte:
		s := strings.TrimSpace(asText(v))
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) {
				return nil
			}
			parsed = int64(f)
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func (r Row) Float64(name string) *float64 {
	var f float64
	switch v := r.Value(name).(type) {
	case nil:
		return nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case int:
		f = float64(v)
	case string, []byte:
		s := strings.TrimSpace(asText(v))
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// ErrUnparsedTime reports non-blank text that matches no timestamp layout.
var ErrUnparsedTime = errors.New("unparsed timestamp")

// Time parses timestamps delivered either as time.Time or as text. Zones are
// dropped: source times are wall-clock values with no timezone claim.
// Unparsable text reads as nil; CheckedTime tells it apart from NULL.
func (r Row) Time(name string) *time.Time {
	t, _ := r.CheckedTime(name)
	return t
}

// CheckedTime is Time, returning ErrUnparsedTime for non-blank text in no
// known layout.
func (r Row) CheckedTime(name string) (*time.Time, error) {
	switch v := r.Value(name).(type) {
	case time.Time:
		t := stripZone(v)
		return &t, nil
	case string, []byte:
		s := asText(v)
		t := ParseTime(s)
		if t == nil && strings.TrimSpace(s) != "" {
			return nil, fmt.Errorf("%w: column %s value %q", ErrUnparsedTime, name, s)
		}
		return t, nil
	default:
		return nil, nil
	}
}

// ParseTime parses the timestamp layouts the source data uses.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = stripZone(t)
			return &t
		}
	}
	return nil
}

func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func asText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}
