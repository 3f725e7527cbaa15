// Package artifacts persists run outputs under the output root:
//
//	<root>/top{N}_by_admission_count.csv
//	<root>/<subject>/patient_manifest.json
//	<root>/<subject>/conversation_details.jsonl
//	<root>/<subject>/conversation_only.json
//	<root>/<subject>/admissions/<hadm>/*.json[l]
package artifacts

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Per-admission file names. Records that point at sibling files use these
// relative names.
const (
	PacketFile            = "packet.json"
	InputDataManifestFile = "input_data_manifest.json"
	PromptRecordFile      = "prompt_record.json"
	ModelCallRecordFile   = "model_call_record.json"
	ConversationFile      = "conversation.jsonl"
	SummaryFile           = "summary.json"
	RawModelOutputFile    = "raw_model_output.json"
	UnlinkedNotesFile     = "unlinked_notes.json"
)

// Layout resolves artifact paths below Root.
type Layout struct {
	Root string
}

type PatientPaths struct {
	PatientDir          string `json:"patient_dir"`
	PatientManifest     string `json:"patient_manifest"`
	ConversationDetails string `json:"conversation_details"`
	ConversationOnly    string `json:"conversation_only"`
}

// AdmissionPaths lists one admission's files. Only the first seven appear in
// the patient manifest.
type AdmissionPaths struct {
	AdmissionDir      string `json:"admission_dir"`
	Packet            string `json:"packet"`
	InputDataManifest string `json:"input_data_manifest"`
	PromptRecord      string `json:"prompt_record"`
	ModelCallRecord   string `json:"model_call_record"`
	Conversation      string `json:"conversation"`
	Summary           string `json:"summary"`
	RawModelOutput    string `json:"-"`
	UnlinkedNotes     string `json:"-"`
}

func (l Layout) CohortCSV(limit int) string {
	return filepath.Join(l.Root, fmt.Sprintf("top%d_by_admission_count.csv", limit))
}

func (l Layout) PatientDir(subjectID int64) string {
	return filepath.Join(l.Root, strconv.FormatInt(subjectID, 10))
}

func (l Layout) Patient(subjectID int64) PatientPaths {
	dir := l.PatientDir(subjectID)
	return PatientPaths{
		PatientDir:          dir,
		PatientManifest:     filepath.Join(dir, "patient_manifest.json"),
		ConversationDetails: filepath.Join(dir, "conversation_details.jsonl"),
		ConversationOnly:    filepath.Join(dir, "conversation_only.json"),
	}
}

func (l Layout) Admission(subjectID, hadmID int64) AdmissionPaths {
	dir := filepath.Join(l.PatientDir(subjectID), "admissions", strconv.FormatInt(hadmID, 10))
	return AdmissionPaths{
		AdmissionDir:      dir,
		Packet:            filepath.Join(dir, PacketFile),
		InputDataManifest: filepath.Join(dir, InputDataManifestFile),
		PromptRecord:      filepath.Join(dir, PromptRecordFile),
		ModelCallRecord:   filepath.Join(dir, ModelCallRecordFile),
		Conversation:      filepath.Join(dir, ConversationFile),
		Summary:           filepath.Join(dir, SummaryFile),
		RawModelOutput:    filepath.Join(dir, RawModelOutputFile),
		UnlinkedNotes:     filepath.Join(dir, UnlinkedNotesFile),
	}
}
