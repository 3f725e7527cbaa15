package packet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

// Singleton EIDs for the patient and admission entities.
const (
	PatientEID   = "PT#000001"
	AdmissionEID = "ADM#000001"
)

// RelTime is one relative-time field appended to a record.
type RelTime struct {
	Field   string
	Minutes *int64
}

// Entry is a source record tagged with its EID and relative times. It
// encodes as the record's own fields followed by "eid" and the RelTime
// fields in order.
type Entry struct {
	EID    string
	Rel    []RelTime
	Record any
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Record); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EID, err)
	}
	body := bytes.TrimSpace(buf.Bytes())
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, fmt.Errorf("encode %s: record is not a JSON object", e.EID)
	}

	out := append([]byte{}, body[:len(body)-1]...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, `"eid":`...)
	out = strconv.AppendQuote(out, e.EID)
	for _, r := range e.Rel {
		out = append(out, ',')
		out = strconv.AppendQuote(out, r.Field)
		out = append(out, ':')
		if r.Minutes == nil {
			out = append(out, "null"...)
			continue
		}
		out = strconv.AppendInt(out, *r.Minutes, 10)
	}
	return append(out, '}'), nil
}

// EID formats the n-th (1-based) identifier of a section.
func EID(prefix string, n int) string {
	return fmt.Sprintf("%s#%06d", prefix, n)
}

// relMin builds the t_rel_min field from the first present candidate.
func relMin(admit time.Time, candidates ...*record.Timestamp) []RelTime {
	return []RelTime{{Field: "t_rel_min", Minutes: FirstMinutes(admit, candidates...)}}
}

// attach numbers rows from 1 in their current order. rel may be nil for
// sections without a time field. The result is never nil.
func attach[T any](prefix string, rows []T, rel func(T) []RelTime) []Entry {
	out := make([]Entry, 0, len(rows))
	for i, row := range rows {
		e := Entry{EID: EID(prefix, i+1), Record: row}
		if rel != nil {
			e.Rel = rel(row)
		}
		out = append(out, e)
	}
	return out
}

// CollectEIDs returns every string value stored under an "eid" key anywhere
// in v, sorted, duplicates included.
func CollectEIDs(v any) ([]string, error) {
	generic, err := canonjson.ToGeneric(v)
	if err != nil {
		return nil, err
	}
	var eids []string
	var walk func(any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			for k, child := range n {
				if s, ok := child.(string); ok && k == "eid" {
					eids = append(eids, s)
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range n {
				walk(child)
			}
		}
	}
	walk(generic)
	sort.Strings(eids)
	return eids, nil
}

// EIDSet is CollectEIDs as a set.
func EIDSet(v any) (map[string]bool, error) {
	eids, err := CollectEIDs(v)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(eids))
	for _, e := range eids {
		set[e] = true
	}
	return set, nil
}
