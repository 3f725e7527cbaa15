package packet

import (
	"github.com/leozzy13/Health-Benchmark/internal/config"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
)

// SectionCount is the truncation outcome of one section.
type SectionCount struct {
	Seen      int  `json:"seen"`
	Retained  int  `json:"retained"`
	Cap       *int `json:"cap"`
	Truncated bool `json:"truncated"`
}

// Clip keeps the first limit rows. A nil or negative limit keeps everything.
func Clip[T any](rows []T, limit *int) ([]T, bool) {
	if limit == nil || *limit < 0 || len(rows) <= *limit {
		return rows, false
	}
	return rows[:*limit], true
}

type truncation struct {
	rules   config.Ruleset
	counts  map[string]SectionCount
	applied bool
}

func newTruncation(rules config.Ruleset) *truncation {
	return &truncation{rules: rules, counts: make(map[string]SectionCount, len(config.Sections))}
}

func truncate[T any](t *truncation, section string, rows []T) []T {
	limit := t.rules.Cap(section)
	kept, cut := Clip(rows, limit)
	t.counts[section] = SectionCount{
		Seen:      len(rows),
		Retained:  len(kept),
		Cap:       limit,
		Truncated: cut,
	}
	t.applied = t.applied || cut
	metrics.RecordSection(section, len(rows), len(kept))
	return kept
}
