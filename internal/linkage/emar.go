package linkage

import (
	"cmp"
	"slices"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
)

// EMAR linkage outcomes.
const (
	OutcomeDirectHadm       = "direct_hadm"
	OutcomeViaPharmacyID    = "linked_via_pharmacy_id"
	OutcomeViaPOEID         = "linked_via_poe_id"
	OutcomeViaTimeWindow    = "linked_via_time_window"
	OutcomeExcludedNullHadm = "excluded_null_hadm"
)

type EMARCounts struct {
	DirectHadm          int `json:"direct_hadm"`
	LinkedViaPharmacyID int `json:"linked_via_pharmacy_id"`
	LinkedViaPOEID      int `json:"linked_via_poe_id"`
	LinkedViaTimeWindow int `json:"linked_via_time_window"`
	ExcludedNullHadm    int `json:"excluded_null_hadm"`
}

func (c *EMARCounts) add(outcome string) {
	switch outcome {
	case OutcomeDirectHadm:
		c.DirectHadm++
	case OutcomeViaPharmacyID:
		c.LinkedViaPharmacyID++
	case OutcomeViaPOEID:
		c.LinkedViaPOEID++
	case OutcomeViaTimeWindow:
		c.LinkedViaTimeWindow++
	default:
		c.ExcludedNullHadm++
	}
}

// Outcomes lists the counts by outcome name.
func (c EMARCounts) Outcomes() map[string]int {
	return map[string]int{
		OutcomeDirectHadm:       c.DirectHadm,
		OutcomeViaPharmacyID:    c.LinkedViaPharmacyID,
		OutcomeViaPOEID:         c.LinkedViaPOEID,
		OutcomeViaTimeWindow:    c.LinkedViaTimeWindow,
		OutcomeExcludedNullHadm: c.ExcludedNullHadm,
	}
}

// EMARScope is what a candidate is matched against: the admission, its
// window, and the pharmacy and order rows already linked to it.
type EMARScope struct {
	HadmID             int64
	AdmitTime          *record.Timestamp
	DischTime          *record.Timestamp
	Pharmacy           []record.Pharmacy
	POE                []record.POE
	TimeWindowFallback bool
}

// Classify returns the outcome for one candidate. Checks run in a fixed
// order and the first match wins.
func (s EMARScope) Classify(row record.EMAR, pharmacyIDs map[int64]bool, poeIDs map[string]bool) string {
	if row.HadmID != nil {
		if *row.HadmID == s.HadmID {
			return OutcomeDirectHadm
		}
		return OutcomeExcludedNullHadm
	}
	if row.PharmacyID != nil && pharmacyIDs[*row.PharmacyID] {
		return OutcomeViaPharmacyID
	}
	if row.POEID != nil && *row.POEID != "" && poeIDs[*row.POEID] {
		return OutcomeViaPOEID
	}
	if s.TimeWindowFallback && row.ChartTime != nil && s.AdmitTime != nil && s.DischTime != nil {
		c := row.ChartTime.Time
		if !c.Before(s.AdmitTime.Time) && !c.After(s.DischTime.Time) {
			return OutcomeViaTimeWindow
		}
	}
	return OutcomeExcludedNullHadm
}

// ResolveEMAR selects the candidates that belong to the admission, in
// charttime, emar_seq, emar_id order with one row per emar_id.
func ResolveEMAR(candidates []record.EMAR, scope EMARScope) ([]record.EMAR, EMARCounts) {
	pharmacyIDs := make(map[int64]bool, len(scope.Pharmacy))
	for _, p := range scope.Pharmacy {
		if p.PharmacyID != nil {
			pharmacyIDs[*p.PharmacyID] = true
		}
	}
	poeIDs := make(map[string]bool, len(scope.POE))
	for _, p := range scope.POE {
		if p.POEID != "" {
			poeIDs[p.POEID] = true
		}
	}

	var counts EMARCounts
	selected := make([]record.EMAR, 0, len(candidates))
	for _, row := range candidates {
		outcome := scope.Classify(row, pharmacyIDs, poeIDs)
		counts.add(outcome)
		if outcome != OutcomeExcludedNullHadm {
			selected = append(selected, row)
		}
	}

	slices.SortStableFunc(selected, func(a, b record.EMAR) int {
		if c := record.CompareTime(a.ChartTime, b.ChartTime); c != 0 {
			return c
		}
		if c := record.CompareInt(a.EMARSeq, b.EMARSeq); c != 0 {
			return c
		}
		return cmp.Compare(a.EMARID, b.EMARID)
	})
	return dedupe(selected, func(e record.EMAR) string { return e.EMARID }), counts
}

// FilterEMARDetails keeps detail rows whose parent administration was
// selected, preserving their order.
func FilterEMARDetails(details []record.EMARDetail, selected []record.EMAR) []record.EMARDetail {
	keep := make(map[string]bool, len(selected))
	for _, e := range selected {
		keep[e.EMARID] = true
	}
	out := make([]record.EMARDetail, 0, len(details))
	for _, d := range details {
		if keep[d.EMARID] {
			out = append(out, d)
		}
	}
	return out
}
