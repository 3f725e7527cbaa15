package validate

import (
	"fmt"
	"strings"
)

// Evidence is the EID universe of one packet.
type Evidence struct {
	Known        map[string]bool
	PatientEID   string
	AdmissionEID string
}

func (ev Evidence) aliases() map[string]string {
	m := map[string]string{}
	if ev.PatientEID != "" {
		m["patient"] = ev.PatientEID
		m["pt"] = ev.PatientEID
	}
	if ev.AdmissionEID != "" {
		m["admission"] = ev.AdmissionEID
		m["adm"] = ev.AdmissionEID
	}
	return m
}

func normalize(eids []string, aliases map[string]string) {
	for i, e := range eids {
		if canonical, ok := aliases[strings.ToLower(strings.TrimSpace(e))]; ok {
			eids[i] = canonical
		}
	}
}

// NormalizeAliases rewrites patient and admission aliases ("Pt", "adm", ...)
// to the packet's EIDs in every citation list of r.
func NormalizeAliases(r *Response, ev Evidence) {
	aliases := ev.aliases()
	if len(aliases) == 0 {
		return
	}
	for i := range r.Conversation {
		normalize(r.Conversation[i].EvidenceEIDs, aliases)
	}
	s := &r.Summary
	for i := range s.ProblemList {
		normalize(s.ProblemList[i].SupportingEIDs, aliases)
	}
	for i := range s.KeyTestsAndResults {
		normalize(s.KeyTestsAndResults[i].SupportingEIDs, aliases)
	}
	for i := range s.TreatmentsAndMeds {
		normalize(s.TreatmentsAndMeds[i].SupportingEIDs, aliases)
	}
	normalize(s.Disposition.SupportingEIDs, aliases)
}

// EnforceEvidence normalizes aliases in place, then returns one message per
// cited EID that is not in the packet, in citation order.
func EnforceEvidence(r *Response, ev Evidence) []string {
	NormalizeAliases(r, ev)

	var issues []string
	check := func(site string, eids []string) {
		for _, e := range eids {
			if !ev.Known[e] {
				issues = append(issues, fmt.Sprintf("%s references unknown EID: %s", site, e))
			}
		}
	}
	for i, t := range r.Conversation {
		check(fmt.Sprintf("conversation[%d]", i+1), t.EvidenceEIDs)
	}
	s := r.Summary
	for i, p := range s.ProblemList {
		check(fmt.Sprintf("problem_list[%d]", i+1), p.SupportingEIDs)
	}
	for i, t := range s.KeyTestsAndResults {
		check(fmt.Sprintf("key_tests_and_results[%d]", i+1), t.SupportingEIDs)
	}
	for i, t := range s.TreatmentsAndMeds {
		check(fmt.Sprintf("treatments_and_meds[%d]", i+1), t.SupportingEIDs)
	}
	check("disposition", s.Disposition.SupportingEIDs)
	return issues
}
