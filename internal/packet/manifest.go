package packet

import (
	"sort"

	"github.com/leozzy13/Health-Benchmark/internal/linkage"
)

// sourceTables maps each query key to the source table(s) it reads.
var sourceTables = map[string]string{
	"transfers":              "hosp.transfers",
	"services":               "hosp.services",
	"labs_strict":            "hosp.labevents",
	"labs_proximal":          "hosp.labevents",
	"micro_strict":           "hosp.microbiologyevents",
	"micro_proximal":         "hosp.microbiologyevents",
	"poe":                    "hosp.poe",
	"poe_detail":             "hosp.poe_detail",
	"prescriptions":          "hosp.prescriptions",
	"pharmacy":               "hosp.pharmacy",
	"emar_candidates":        "hosp.emar",
	"emar_detail_candidates": "hosp.emar_detail",
	"diagnoses_icd":          "hosp.diagnoses_icd+d_icd_diagnoses",
	"procedures_icd":         "hosp.procedures_icd+d_icd_procedures",
	"drgcodes":               "hosp.drgcodes",
	"discharge":              "note.discharge",
	"discharge_detail":       "note.discharge_detail",
	"radiology":              "note.radiology",
	"radiology_detail":       "note.radiology_detail",
	"radiology_unlinked":     "note.radiology",
	"icustays":               "icu.icustays",
}

// TableUsage is one source query's row count. Retained and Truncated are
// set only for queries that feed a truncation section directly.
type TableUsage struct {
	Table            string `json:"table"`
	SectionKey       string `json:"section_key"`
	RowCount         int    `json:"row_count"`
	RowCountRetained *int   `json:"row_count_retained,omitempty"`
	Truncated        *bool  `json:"truncated,omitempty"`
}

type PolicyCaptureCounts struct {
	Labs         linkage.ProximalCounts  `json:"labs"`
	Microbiology linkage.ProximalCounts  `json:"microbiology"`
	EMAR         linkage.EMARCounts      `json:"emar"`
	Radiology    linkage.RadiologyCounts `json:"radiology"`
}

type TruncationReport struct {
	Applied          bool                    `json:"applied"`
	RulesetID        string                  `json:"ruleset_id"`
	PerSectionLimits map[string]*int         `json:"per_section_limits"`
	PerSectionCounts map[string]SectionCount `json:"per_section_counts"`
}

type ManifestHashes struct {
	PacketSHA256 string `json:"packet_sha256"`
}

// InputDataManifest is the provenance record written beside packet.json.
type InputDataManifest struct {
	SchemaVersion          string              `json:"schema_version"`
	BenchmarkVersion       string              `json:"benchmark_version"`
	DatasetVersions        DatasetVersions     `json:"dataset_versions"`
	IDs                    IDs                 `json:"ids"`
	ExtractionTimestampUTC string              `json:"extraction_timestamp_utc"`
	TablesUsed             []TableUsage        `json:"tables_used"`
	NullHandlingPolicies   linkage.Policies    `json:"null_handling_policies"`
	PolicyCaptureCounts    PolicyCaptureCounts `json:"policy_capture_counts"`
	Truncation             TruncationReport    `json:"truncation"`
	Hashes                 ManifestHashes      `json:"hashes"`
	PacketEIDCount         int                 `json:"packet_eid_count"`
}

// tablesUsed lists the admission/patient join first, then every executed
// query sorted by key.
func tablesUsed(queries linkage.QueryCounts, counts map[string]SectionCount) []TableUsage {
	keys := make([]string, 0, len(queries))
	for k := range queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TableUsage, 0, len(keys)+1)
	out = append(out, TableUsage{Table: "hosp.admissions+hosp.patients", SectionKey: "admission_patient", RowCount: 1})
	for _, k := range keys {
		table, ok := sourceTables[k]
		if !ok {
			table = k
		}
		u := TableUsage{Table: table, SectionKey: k, RowCount: queries[k]}
		if c, ok := counts[k]; ok {
			retained, truncated := c.Retained, c.Truncated
			u.RowCountRetained = &retained
			u.Truncated = &truncated
		}
		out = append(out, u)
	}
	return out
}
