package pipeline

import (
	"encoding/json"

	"github.com/leozzy13/Health-Benchmark/internal/artifacts"
	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/llm"
	"github.com/leozzy13/Health-Benchmark/internal/packet"
	"github.com/leozzy13/Health-Benchmark/internal/prompt"
	"github.com/leozzy13/Health-Benchmark/internal/validate"
)

// Admission statuses in the patient manifest.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Model call record statuses.
const (
	CallCompleted = "completed"
	CallFailed    = "failed"
)

type ModelSnapshot struct {
	Provider        string  `json:"provider"`
	Name            string  `json:"name"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	Seed            *int64  `json:"seed"`
	RetryLimit      int     `json:"retry_limit"`
}

type ConfigSnapshot struct {
	PacketSchemaVersion   string        `json:"packet_schema_version"`
	PromptTemplateVersion string        `json:"prompt_template_version"`
	Model                 ModelSnapshot `json:"model"`
	StrictValidation      bool          `json:"strict_validation"`
	TruncationRulesetID   string        `json:"truncation_ruleset_id"`
}

// AdmissionEntry tracks one admission in the patient manifest. It is
// rewritten to disk at every status change.
type AdmissionEntry struct {
	HadmID                             int64                    `json:"hadm_id"`
	AdmitTime                          *record.Timestamp        `json:"admittime"`
	DischTime                          *record.Timestamp        `json:"dischtime"`
	DischargeNoteCount                 int64                    `json:"discharge_note_count"`
	Status                             string                   `json:"status"`
	Paths                              artifacts.AdmissionPaths `json:"paths"`
	ConversationTurns                  *int                     `json:"conversation_turns,omitempty"`
	PacketSHA256                       string                   `json:"packet_sha256,omitempty"`
	OutputSummaryRelativeDischargeTime string                   `json:"output_summary_relative_discharge_time,omitempty"`
	Error                              string                   `json:"error,omitempty"`
}

type SubjectIDs struct {
	SubjectID int64 `json:"subject_id"`
}

// PatientManifest is the running record of one patient's run.
type PatientManifest struct {
	SchemaVersion    string                 `json:"schema_version"`
	BenchmarkVersion string                 `json:"benchmark_version"`
	BenchmarkName    string                 `json:"benchmark_name"`
	RunID            string                 `json:"run_id"`
	GeneratedAtUTC   string                 `json:"generated_at_utc"`
	IDs              SubjectIDs             `json:"ids"`
	Paths            artifacts.PatientPaths `json:"paths"`
	DatasetVersions  packet.DatasetVersions `json:"dataset_versions"`
	ConfigSnapshot   ConfigSnapshot         `json:"config_snapshot"`
	Admissions       []*AdmissionEntry      `json:"admissions"`
}

type PromptRecord struct {
	SchemaVersion           string            `json:"schema_version"`
	PromptTemplateVersion   string            `json:"prompt_template_version"`
	IDs                     packet.IDs        `json:"ids"`
	PacketPath              string            `json:"packet_path"`
	PreviousSummaryIncluded bool              `json:"previous_summary_included"`
	SystemMessage           string            `json:"system_message"`
	UserMessage             string            `json:"user_message"`
	Delimiters              prompt.Delimiters `json:"delimiters"`
	Hashes                  prompt.Hashes     `json:"hashes"`
}

type CallModel struct {
	Provider        string  `json:"provider"`
	Name            string  `json:"name"`
	ReasoningEffort *string `json:"reasoning_effort"`
}

type CallParams struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	Seed            *int64  `json:"seed"`
}

type OutputPaths struct {
	RawModelOutput string `json:"raw_model_output"`
	Conversation   string `json:"conversation"`
	Summary        string `json:"summary"`
}

// ModelCallRecord is the transport audit log of one admission. It is
// written for failed generations too.
type ModelCallRecord struct {
	SchemaVersion    string        `json:"schema_version"`
	IDs              packet.IDs    `json:"ids"`
	Status           string        `json:"status"`
	Model            CallModel     `json:"model"`
	Params           CallParams    `json:"params"`
	Attempts         []llm.Attempt `json:"attempts"`
	ValidationErrors []string      `json:"validation_errors,omitempty"`
	OutputPaths      OutputPaths   `json:"output_paths"`
}

type RawModelOutput struct {
	ResponseText string          `json:"response_text"`
	RawResponse  json.RawMessage `json:"raw_response"`
}

// DetailRow is one turn in the patient-level conversation rollup.
type DetailRow struct {
	SubjectID int64 `json:"subject_id"`
	HadmID    int64 `json:"hadm_id"`
	validate.Turn
}

type SpeakerText struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ConversationOnly is one admission in the speaker and text rollup.
type ConversationOnly struct {
	HadmID       int64         `json:"hadm_id"`
	Conversation []SpeakerText `json:"conversation"`
}
