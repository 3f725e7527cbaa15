package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Sections lists every truncatable packet section in packet order.
var Sections = []string{
	"transfers",
	"services",
	"discharge",
	"discharge_detail",
	"radiology",
	"radiology_detail",
	"labs",
	"microbiology",
	"poe",
	"poe_detail",
	"prescriptions",
	"pharmacy",
	"emar",
	"emar_detail",
	"diagnoses_icd",
	"procedures_icd",
	"drgcodes",
	"icustays",
}

// Ruleset is a named set of per-section row caps. A nil cap means uncapped.
type Ruleset struct {
	ID   string          `yaml:"ruleset_id" json:"ruleset_id"`
	Caps map[string]*int `yaml:"per_section_row_caps" json:"per_section_row_caps"`
}

func intp(n int) *int { return &n }

// DefaultRuleset returns trunc.v1.
func DefaultRuleset() Ruleset {
	return Ruleset{
		ID: "trunc.v1",
		Caps: map[string]*int{
			"transfers":        nil,
			"services":         nil,
			"discharge":        nil,
			"discharge_detail": nil,
			"radiology":        nil,
			"radiology_detail": nil,
			"labs":             intp(800),
			"microbiology":     intp(200),
			"poe":              intp(400),
			"poe_detail":       intp(800),
			"prescriptions":    intp(400),
			"pharmacy":         intp(400),
			"emar":             intp(600),
			"emar_detail":      intp(1200),
			"diagnoses_icd":    intp(80),
			"procedures_icd":   intp(80),
			"drgcodes":         intp(20),
			"icustays":         intp(20),
		},
	}
}

// LoadRuleset reads a YAML ruleset. Sections missing from the file keep
// their trunc.v1 cap; an explicit null makes a section uncapped.
func LoadRuleset(path string) (Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read truncation ruleset %s: %w", path, err)
	}

	var file Ruleset
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Ruleset{}, fmt.Errorf("parse truncation ruleset %s: %w", path, err)
	}

	rs := DefaultRuleset()
	if file.ID != "" {
		rs.ID = file.ID
	}
	for section, c := range file.Caps {
		rs.Caps[section] = c
	}
	if err := rs.Validate(); err != nil {
		return Ruleset{}, fmt.Errorf("truncation ruleset %s: %w", path, err)
	}
	return rs, nil
}

// Cap returns the cap for section, nil when uncapped or unknown.
func (r Ruleset) Cap(section string) *int {
	return r.Caps[section]
}

// Validate rejects unknown section names.
func (r Ruleset) Validate() error {
	known := make(map[string]bool, len(Sections))
	for _, s := range Sections {
		known[s] = true
	}
	var unknown []string
	for s := range r.Caps {
		if !known[s] {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown truncation sections: %v", unknown)
	}
	if r.ID == "" {
		return fmt.Errorf("truncation ruleset_id is required")
	}
	return nil
}

// Clone returns a deep copy so overrides never leak between runs.
func (r Ruleset) Clone() Ruleset {
	out := Ruleset{ID: r.ID, Caps: make(map[string]*int, len(r.Caps))}
	for k, v := range r.Caps {
		if v == nil {
			out.Caps[k] = nil
			continue
		}
		out.Caps[k] = intp(*v)
	}
	return out
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() ([]byte, error) {
	redacted := *c
	if redacted.DatabaseURL != "" {
		redacted.DatabaseURL = "<redacted>"
	}
	if redacted.RedisURL != "" {
		redacted.RedisURL = "<redacted>"
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
