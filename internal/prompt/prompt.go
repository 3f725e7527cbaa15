// Package prompt turns a sealed packet into the system and user messages
// sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leozzy13/Health-Benchmark/internal/packet"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

var ErrDelimiterCollision = errors.New("prompt delimiter occurs in embedded content")

// Delimiters bracket each part of the user message.
type Delimiters struct {
	Metadata       string `json:"metadata"`
	MetadataEnd    string `json:"metadata_end"`
	PrevSummary    string `json:"prev_summary"`
	PrevSummaryEnd string `json:"prev_summary_end"`
	EHRJSON        string `json:"ehr_json"`
	EHRJSONEnd     string `json:"ehr_json_end"`
	Task           string `json:"task"`
	TaskEnd        string `json:"task_end"`
}

func DefaultDelimiters() Delimiters {
	return Delimiters{
		Metadata:       "<<BENCHMARK_METADATA>>",
		MetadataEnd:    "<<END_BENCHMARK_METADATA>>",
		PrevSummary:    "<<PREVIOUS_ADMISSION_SUMMARY>>",
		PrevSummaryEnd: "<<END_PREVIOUS_ADMISSION_SUMMARY>>",
		EHRJSON:        "<<EHR_PACKET_JSON>>",
		EHRJSONEnd:     "<<END_EHR_PACKET_JSON>>",
		Task:           "<<TASK>>",
		TaskEnd:        "<<END_TASK>>",
	}
}

func (d Delimiters) all() []string {
	return []string{d.Metadata, d.MetadataEnd, d.PrevSummary, d.PrevSummaryEnd, d.EHRJSON, d.EHRJSONEnd, d.Task, d.TaskEnd}
}

// Validate requires every delimiter to be non-empty, distinct, and not a
// substring of another.
func (d Delimiters) Validate() error {
	all := d.all()
	for i, a := range all {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("prompt delimiter %d is empty", i)
		}
		for j, b := range all {
			if i != j && strings.Contains(b, a) {
				return fmt.Errorf("prompt delimiter %q is ambiguous with %q", a, b)
			}
		}
	}
	return nil
}

type Options struct {
	BenchmarkName       string
	BenchmarkVersion    string
	PacketSchemaVersion string
	TemplateVersion     string
	Delimiters          Delimiters
}

// Rendered is one prompt ready to send.
type Rendered struct {
	System     string
	User       string
	PacketJSON string
}

// Hashes are the SHA-256 digests recorded in the prompt record.
type Hashes struct {
	PacketSHA256 string `json:"packet_sha256"`
	SystemSHA256 string `json:"system_sha256"`
	UserSHA256   string `json:"user_sha256"`
}

type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) (*Renderer, error) {
	if err := opts.Delimiters.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{opts: opts}, nil
}

func (r *Renderer) Delimiters() Delimiters {
	return r.opts.Delimiters
}

// Render builds the messages for p. previousSummary is the prior admission's
// canonical summary JSON, empty for a patient's first admission.
func (r *Renderer) Render(p *packet.Packet, previousSummary string) (*Rendered, error) {
	packetJSON, err := p.Canonical()
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	d := r.opts.Delimiters
	for _, delim := range d.all() {
		if strings.Contains(packetJSON, delim) || strings.Contains(previousSummary, delim) {
			return nil, fmt.Errorf("%w: %q", ErrDelimiterCollision, delim)
		}
	}

	lines := []string{
		d.Metadata,
		"benchmark_name: " + r.opts.BenchmarkName,
		"benchmark_version: " + r.opts.BenchmarkVersion,
		"packet_schema_version: " + r.opts.PacketSchemaVersion,
		"prompt_template_version: " + r.opts.TemplateVersion,
		"subject_id: " + strconv.FormatInt(p.IDs.SubjectID, 10),
		"hadm_id: " + strconv.FormatInt(p.IDs.HadmID, 10),
		d.MetadataEnd,
		"",
		d.PrevSummary,
		previousSummary,
		d.PrevSummaryEnd,
		"",
		d.EHRJSON,
		packetJSON,
		d.EHRJSONEnd,
		"",
		d.Task,
		taskBlock,
		d.TaskEnd,
	}
	return &Rendered{
		System:     systemMessage,
		User:       strings.Join(lines, "\n"),
		PacketJSON: packetJSON,
	}, nil
}

// Hashes digests both messages. packetSHA256 is the hash sealed into the
// packet.
func (rp *Rendered) Hashes(packetSHA256 string) Hashes {
	return Hashes{
		PacketSHA256: packetSHA256,
		SystemSHA256: canonjson.SHA256String(rp.System),
		UserSHA256:   canonjson.SHA256String(rp.User),
	}
}

// AppendRepair appends the repair directive to the original user message.
// Callers always pass the original message, so directives never stack.
func AppendRepair(user string) string {
	return user + "\n\n" + repairBlock
}
