// Package linkage decides which records with a missing admission key belong
// to an admission, and counts every decision.
package linkage

import (
	"cmp"
	"slices"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
)

// Named policies for records whose hadm_id is null.
const (
	ProximalTimeJoin            = "PROXIMAL_TIME_JOIN"
	LinkViaPharmacyOrTimeWindow = "LINK_VIA_PHARMACY_OR_TIME_WINDOW"
	LogAndExcludeByDefault      = "LOG_AND_EXCLUDE_BY_DEFAULT"
)

// Policies is the null-handling table recorded in every input data manifest.
type Policies struct {
	LabEvents          string `json:"labevents_hadm_id_null"`
	MicrobiologyEvents string `json:"microbiologyevents_hadm_id_null"`
	EMAR               string `json:"emar_hadm_id_null"`
	Radiology          string `json:"radiology_hadm_id_null"`
}

func DefaultPolicies() Policies {
	return Policies{
		LabEvents:          ProximalTimeJoin,
		MicrobiologyEvents: ProximalTimeJoin,
		EMAR:               LinkViaPharmacyOrTimeWindow,
		Radiology:          LogAndExcludeByDefault,
	}
}

// ProximalCounts tallies directly linked rows and rows captured by the
// padded time window.
type ProximalCounts struct {
	StrictHadm       int `json:"strict_hadm"`
	ProximalNullHadm int `json:"proximal_null_hadm"`
}

// RadiologyCounts tallies linked notes and unlinked notes kept out of the
// packet.
type RadiologyCounts struct {
	LinkedHadm           int `json:"linked_hadm"`
	UnlinkedHadmExcluded int `json:"unlinked_hadm_excluded"`
}

// dedupe keeps the first row for each key.
func dedupe[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]bool, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func compareLabs(a, b record.LabEvent) int {
	if c := record.CompareTime(a.ChartTime, b.ChartTime); c != 0 {
		return c
	}
	if c := record.CompareTime(a.StoreTime, b.StoreTime); c != 0 {
		return c
	}
	return cmp.Compare(a.LabEventID, b.LabEventID)
}

func compareMicro(a, b record.MicroEvent) int {
	if c := record.CompareTime(a.ChartTime, b.ChartTime); c != 0 {
		return c
	}
	if c := record.CompareTime(a.ChartDate, b.ChartDate); c != 0 {
		return c
	}
	if c := record.CompareTime(a.StoreTime, b.StoreTime); c != 0 {
		return c
	}
	return cmp.Compare(a.MicroEventID, b.MicroEventID)
}

// MergeLabs combines directly linked and proximal labs. A lab present in
// both counts once and the direct copy wins.
func MergeLabs(direct, proximal []record.LabEvent) []record.LabEvent {
	merged := dedupe(slices.Concat(direct, proximal), func(l record.LabEvent) int64 { return l.LabEventID })
	slices.SortStableFunc(merged, compareLabs)
	return merged
}

// MergeMicro is MergeLabs for microbiology events.
func MergeMicro(direct, proximal []record.MicroEvent) []record.MicroEvent {
	merged := dedupe(slices.Concat(direct, proximal), func(m record.MicroEvent) int64 { return m.MicroEventID })
	slices.SortStableFunc(merged, compareMicro)
	return merged
}
