package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Source module directories of the MIMIC-IV exports.
const (
	ModuleHosp = "hosp"
	ModuleICU  = "icu"
	ModuleNote = "note"
)

// Table describes one source table and the export file that fills it.
type Table struct {
	Name          string
	Module        string
	File          string
	SubjectScoped bool
	Optional      bool
}

var tables = []Table{
	{Name: "hosp_admissions", Module: ModuleHosp, File: "admissions", SubjectScoped: true},
	{Name: "hosp_patients", Module: ModuleHosp, File: "patients", SubjectScoped: true},
	{Name: "hosp_transfers", Module: ModuleHosp, File: "transfers", SubjectScoped: true},
	{Name: "hosp_services", Module: ModuleHosp, File: "services", SubjectScoped: true},
	{Name: "hosp_labevents", Module: ModuleHosp, File: "labevents", SubjectScoped: true},
	{Name: "hosp_d_labitems", Module: ModuleHosp, File: "d_labitems"},
	{Name: "hosp_microbiologyevents", Module: ModuleHosp, File: "microbiologyevents", SubjectScoped: true},
	{Name: "hosp_poe", Module: ModuleHosp, File: "poe", SubjectScoped: true},
	{Name: "hosp_poe_detail", Module: ModuleHosp, File: "poe_detail", SubjectScoped: true},
	{Name: "hosp_prescriptions", Module: ModuleHosp, File: "prescriptions", SubjectScoped: true},
	{Name: "hosp_pharmacy", Module: ModuleHosp, File: "pharmacy", SubjectScoped: true},
	{Name: "hosp_emar", Module: ModuleHosp, File: "emar", SubjectScoped: true},
	{Name: "hosp_emar_detail", Module: ModuleHosp, File: "emar_detail", SubjectScoped: true},
	{Name: "hosp_diagnoses_icd", Module: ModuleHosp, File: "diagnoses_icd", SubjectScoped: true},
	{Name: "hosp_d_icd_diagnoses", Module: ModuleHosp, File: "d_icd_diagnoses"},
	{Name: "hosp_procedures_icd", Module: ModuleHosp, File: "procedures_icd", SubjectScoped: true},
	{Name: "hosp_d_icd_procedures", Module: ModuleHosp, File: "d_icd_procedures"},
	{Name: "hosp_drgcodes", Module: ModuleHosp, File: "drgcodes", SubjectScoped: true},
	{Name: "hosp_omr", Module: ModuleHosp, File: "omr", SubjectScoped: true, Optional: true},
	{Name: "hosp_provider", Module: ModuleHosp, File: "provider", Optional: true},
	{Name: "icu_icustays", Module: ModuleICU, File: "icustays", SubjectScoped: true},
	{Name: "note_discharge", Module: ModuleNote, File: "discharge", SubjectScoped: true},
	{Name: "note_discharge_detail", Module: ModuleNote, File: "discharge_detail", SubjectScoped: true},
	{Name: "note_radiology", Module: ModuleNote, File: "radiology", SubjectScoped: true},
	{Name: "note_radiology_detail", Module: ModuleNote, File: "radiology_detail", SubjectScoped: true},
}

// Tables returns the source table registry.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// LookupTable finds a table by name.
func LookupTable(name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// SubjectScopedTables lists tables keyed by subject_id.
func SubjectScopedTables() []string {
	var out []string
	for _, t := range tables {
		if t.SubjectScoped {
			out = append(out, t.Name)
		}
	}
	return out
}

// CheckTables fails with ErrSourceUnavailable naming every missing required
// table.
func CheckTables(ctx context.Context, s Store) error {
	present, err := listTables(ctx, s, s.Dialect())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	var missing []string
	for _, t := range tables {
		if !t.Optional && !present[t.Name] {
			missing = append(missing, t.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing tables %s", ErrSourceUnavailable, strings.Join(missing, ", "))
	}
	return nil
}
