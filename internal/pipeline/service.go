// Package pipeline drives a patient's admissions through extraction,
// prompting, generation and validation, persisting every artifact as it
// goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/artifacts"
	"github.com/leozzy13/Health-Benchmark/internal/config"
	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/llm"
	"github.com/leozzy13/Health-Benchmark/internal/packet"
	"github.com/leozzy13/Health-Benchmark/internal/platform/events"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
	"github.com/leozzy13/Health-Benchmark/internal/prompt"
	"github.com/leozzy13/Health-Benchmark/internal/validate"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

// ErrNoAdmissions is returned when a subject has no admission left after
// filtering.
var ErrNoAdmissions = errors.New("no admissions found")

const timestampLayout = "2006-01-02T15:04:05Z"

// Options are the run-level settings recorded in the manifests.
type Options struct {
	BenchmarkName         string
	BenchmarkVersion      string
	ManifestSchemaVersion string
	PacketSchemaVersion   string
	PromptTemplateVersion string
	Datasets              packet.DatasetVersions
	Model                 llm.Params
	StrictValidation      bool
	TruncationRulesetID   string
	OnlyWithDischarge     bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BenchmarkName:         cfg.BenchmarkName,
		BenchmarkVersion:      cfg.BenchmarkVersion,
		ManifestSchemaVersion: cfg.ManifestSchemaVersion,
		PacketSchemaVersion:   cfg.PacketSchemaVersion,
		PromptTemplateVersion: cfg.PromptTemplateVersion,
		Datasets: packet.DatasetVersions{
			MIMICIV:     cfg.MIMICIVVersion,
			MIMICIVNote: cfg.MIMICIVNoteVersion,
		},
		Model:               llm.ParamsFromConfig(cfg),
		StrictValidation:    cfg.StrictValidation,
		TruncationRulesetID: cfg.Truncation.ID,
		OnlyWithDischarge:   cfg.OnlyWithDischarge,
	}
}

// PatientRequest selects the admissions of one patient run.
type PatientRequest struct {
	SubjectID int64
	// HadmID restricts the run to one admission of the subject.
	HadmID *int64
	// MaxAdmissions caps the number of admissions; zero means no cap.
	MaxAdmissions int
	// OnlyWithDischarge overrides Options.OnlyWithDischarge when set.
	OnlyWithDischarge *bool
}

type Service struct {
	repo      record.Repository
	assembler *packet.Assembler
	renderer  *prompt.Renderer
	client    llm.Client
	layout    artifacts.Layout
	opts      Options
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
	newRunID  func() string
}

func NewService(repo record.Repository, assembler *packet.Assembler, renderer *prompt.Renderer,
	client llm.Client, layout artifacts.Layout, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		assembler: assembler,
		renderer:  renderer,
		client:    client,
		layout:    layout,
		opts:      opts,
		publisher: events.Nop{},
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
		newRunID:  func() string { return uuid.New().String() },
	}
}

// SetPublisher attaches a run event publisher. Publish failures are logged
// and never fail a run.
func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Msg("publish run event")
	}
}

// ListAdmissions returns the admissions a patient run would process, in
// admittime order (missing admittime last, then hadm_id).
func (s *Service) ListAdmissions(ctx context.Context, req PatientRequest) ([]record.AdmissionSummary, error) {
	all, err := s.repo.ListAdmissions(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	onlyWithDischarge := s.opts.OnlyWithDischarge
	if req.OnlyWithDischarge != nil {
		onlyWithDischarge = *req.OnlyWithDischarge
	}

	var out []record.AdmissionSummary
	for _, a := range all {
		if onlyWithDischarge && a.DischargeNoteCount == 0 {
			continue
		}
		out = append(out, a)
	}
	if req.MaxAdmissions > 0 && len(out) > req.MaxAdmissions {
		out = out[:req.MaxAdmissions]
	}
	if req.HadmID != nil {
		var one []record.AdmissionSummary
		for _, a := range out {
			if a.HadmID == *req.HadmID {
				one = append(one, a)
			}
		}
		out = one
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for subject_id=%d under current filters", ErrNoAdmissions, req.SubjectID)
	}
	return out, nil
}

// patientRun is the state of one patient's run. The rollups grow with each
// completed admission.
type patientRun struct {
	manifest *PatientManifest
	paths    artifacts.PatientPaths
	details  []DetailRow
	only     []ConversationOnly
}

func (s *Service) newManifest(subjectID int64) *PatientManifest {
	m := s.opts.Model
	return &PatientManifest{
		SchemaVersion:    s.opts.ManifestSchemaVersion,
		BenchmarkVersion: s.opts.BenchmarkVersion,
		BenchmarkName:    s.opts.BenchmarkName,
		RunID:            s.newRunID(),
		GeneratedAtUTC:   s.now().UTC().Format(timestampLayout),
		IDs:              SubjectIDs{SubjectID: subjectID},
		Paths:            s.layout.Patient(subjectID),
		DatasetVersions:  s.opts.Datasets,
		ConfigSnapshot: ConfigSnapshot{
			PacketSchemaVersion:   s.opts.PacketSchemaVersion,
			PromptTemplateVersion: s.opts.PromptTemplateVersion,
			Model: ModelSnapshot{
				Provider:        m.Provider,
				Name:            m.Model,
				Temperature:     m.Temperature,
				MaxOutputTokens: m.MaxOutputTokens,
				Seed:            m.Seed,
				RetryLimit:      m.RetryLimit,
			},
			StrictValidation:    s.opts.StrictValidation,
			TruncationRulesetID: s.opts.TruncationRulesetID,
		},
		Admissions: []*AdmissionEntry{},
	}
}

// GeneratePatient processes the subject's admissions in order, threading
// each validated summary into the next prompt. The first failing admission
// is recorded in the manifest and ends the run; the manifest written so far
// is returned with the error.
func (s *Service) GeneratePatient(ctx context.Context, req PatientRequest) (*PatientManifest, error) {
	admissions, err := s.ListAdmissions(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ScopeSubject(ctx, req.SubjectID); err != nil {
		return nil, fmt.Errorf("scope subject %d: %w", req.SubjectID, err)
	}
	if err := s.layout.ResetPatientDir(req.SubjectID); err != nil {
		return nil, err
	}

	run := &patientRun{
		manifest: s.newManifest(req.SubjectID),
		paths:    s.layout.Patient(req.SubjectID),
	}
	log := s.logger.With().Str("run_id", run.manifest.RunID).Int64("subject_id", req.SubjectID).Logger()
	log.Info().Int("admissions", len(admissions)).Msg("patient run started")

	prevSummary := ""
	for _, adm := range admissions {
		entry := &AdmissionEntry{
			HadmID:             adm.HadmID,
			AdmitTime:          adm.AdmitTime,
			DischTime:          adm.DischTime,
			DischargeNoteCount: adm.DischargeNoteCount,
			Status:             StatusPending,
			Paths:              s.layout.Admission(req.SubjectID, adm.HadmID),
		}
		run.manifest.Admissions = append(run.manifest.Admissions, entry)
		if err := s.writeManifest(run); err != nil {
			return run.manifest, err
		}

		hadmID := adm.HadmID
		alog := log.With().Int64("hadm_id", hadmID).Logger()
		s.publish(ctx, events.New(events.AdmissionStarted, run.manifest.RunID, req.SubjectID, &hadmID, nil))
		alog.Info().Msg("admission started")

		summary, err := s.processAdmission(ctx, run, entry, prevSummary, alog)
		if err != nil {
			entry.Status = StatusError
			entry.Error = err.Error()
			metrics.RecordAdmission(StatusError)
			s.publish(ctx, events.New(events.AdmissionFailed, run.manifest.RunID, req.SubjectID, &hadmID,
				map[string]any{"error": entry.Error}))
			alog.Error().Err(err).Msg("admission failed")
			if werr := s.writeManifest(run); werr != nil {
				return run.manifest, errors.Join(err, werr)
			}
			return run.manifest, fmt.Errorf("subject %d admission %d: %w", req.SubjectID, hadmID, err)
		}

		prevSummary = summary
		entry.Status = StatusCompleted
		metrics.RecordAdmission(StatusCompleted)
		if err := s.writeManifest(run); err != nil {
			return run.manifest, err
		}
		s.publish(ctx, events.New(events.AdmissionCompleted, run.manifest.RunID, req.SubjectID, &hadmID,
			map[string]any{"conversation_turns": *entry.ConversationTurns, "packet_sha256": entry.PacketSHA256}))
		alog.Info().Int("turns", *entry.ConversationTurns).Msg("admission completed")
	}

	s.publish(ctx, events.New(events.PatientCompleted, run.manifest.RunID, req.SubjectID, nil,
		map[string]any{"admissions": len(run.manifest.Admissions)}))
	log.Info().Msg("patient run completed")
	return run.manifest, nil
}

func (s *Service) writeManifest(run *patientRun) error {
	if err := artifacts.WriteJSON(run.paths.PatientManifest, run.manifest); err != nil {
		return fmt.Errorf("write patient manifest: %w", err)
	}
	return nil
}

// processAdmission runs one admission end to end and returns its summary
// as canonical JSON for the next admission's prompt.
func (s *Service) processAdmission(ctx context.Context, run *patientRun, entry *AdmissionEntry,
	prevSummary string, log zerolog.Logger) (string, error) {

	subjectID := run.manifest.IDs.SubjectID
	paths := entry.Paths

	res, err := s.assembler.Extract(ctx, subjectID, entry.HadmID)
	if err != nil {
		return "", err
	}
	p := res.Packet
	if err := artifacts.WriteJSON(paths.Packet, p); err != nil {
		return "", err
	}
	if err := artifacts.WriteJSON(paths.InputDataManifest, res.Manifest); err != nil {
		return "", err
	}
	if err := artifacts.WriteUnlinkedNotes(paths.UnlinkedNotes, res.UnlinkedRadiology); err != nil {
		return "", err
	}
	if m := p.DischargeMinutes(); m != nil {
		le := log.Debug().Str("discharge_offset", packet.FormatRelative(*m))
		if label, ok := packet.HospitalDayLabel(*m); ok {
			le = le.Str("discharge_day", label)
		}
		le.Int("packet_eids", res.Manifest.PacketEIDCount).Msg("packet assembled")
	}

	rendered, err := s.renderer.Render(p, prevSummary)
	if err != nil {
		return "", err
	}
	if err := artifacts.WriteJSON(paths.PromptRecord, PromptRecord{
		SchemaVersion:           s.opts.ManifestSchemaVersion,
		PromptTemplateVersion:   s.opts.PromptTemplateVersion,
		IDs:                     p.IDs,
		PacketPath:              artifacts.PacketFile,
		PreviousSummaryIncluded: prevSummary != "",
		SystemMessage:           rendered.System,
		UserMessage:             rendered.User,
		Delimiters:              s.renderer.Delimiters(),
		Hashes:                  rendered.Hashes(p.SHA256()),
	}); err != nil {
		return "", err
	}

	known, err := packet.EIDSet(p)
	if err != nil {
		return "", err
	}
	ev := validate.Evidence{Known: known, PatientEID: p.Patient.EID, AdmissionEID: p.Admission.EID}

	gen, err := generate(ctx, s.client, rendered.System, rendered.User, ev,
		s.opts.Model.RetryLimit, s.opts.StrictValidation, log)
	if err != nil {
		var gerr *GenerationError
		if errors.As(err, &gerr) {
			rec := s.callRecord(p.IDs, CallFailed, gerr.Attempts)
			rec.ValidationErrors = gerr.ValidationErrors
			if werr := artifacts.WriteJSON(paths.ModelCallRecord, rec); werr != nil {
				return "", errors.Join(err, werr)
			}
		}
		return "", err
	}
	resp := gen.response

	if err := artifacts.WriteJSON(paths.RawModelOutput, RawModelOutput{
		ResponseText: gen.result.Text,
		RawResponse:  gen.result.Raw,
	}); err != nil {
		return "", err
	}
	if err := artifacts.WriteJSONL(paths.Conversation, resp.Conversation); err != nil {
		return "", err
	}

	only := ConversationOnly{HadmID: entry.HadmID, Conversation: make([]SpeakerText, 0, len(resp.Conversation))}
	for _, turn := range resp.Conversation {
		run.details = append(run.details, DetailRow{SubjectID: subjectID, HadmID: entry.HadmID, Turn: turn})
		only.Conversation = append(only.Conversation, SpeakerText{Speaker: turn.Speaker, Text: turn.Text})
	}
	run.only = append(run.only, only)
	if err := artifacts.WriteJSONL(run.paths.ConversationDetails, run.details); err != nil {
		return "", err
	}
	if err := artifacts.WriteJSON(run.paths.ConversationOnly, run.only); err != nil {
		return "", err
	}

	if err := artifacts.WriteJSON(paths.Summary, resp.Summary); err != nil {
		return "", err
	}
	rec := s.callRecord(p.IDs, CallCompleted, gen.result.Attempts)
	if err := artifacts.WriteJSON(paths.ModelCallRecord, rec); err != nil {
		return "", err
	}
	log.Debug().Int("attempts", len(rec.Attempts)).Int("evidence_warnings", len(gen.warnings)).
		Msg("generation accepted")

	summary, err := canonjson.MarshalString(resp.Summary)
	if err != nil {
		return "", err
	}
	turns := len(resp.Conversation)
	entry.ConversationTurns = &turns
	entry.PacketSHA256 = p.SHA256()
	entry.OutputSummaryRelativeDischargeTime = resp.Summary.RelativeDischargeTime
	return summary, nil
}

func (s *Service) callRecord(ids packet.IDs, status string, attempts []llm.Attempt) ModelCallRecord {
	m := s.opts.Model
	var effort *string
	if m.ReasoningEffort != "" {
		effort = &m.ReasoningEffort
	}
	if attempts == nil {
		attempts = []llm.Attempt{}
	}
	return ModelCallRecord{
		SchemaVersion: s.opts.ManifestSchemaVersion,
		IDs:           ids,
		Status:        status,
		Model:         CallModel{Provider: m.Provider, Name: m.Model, ReasoningEffort: effort},
		Params:        CallParams{Temperature: m.Temperature, MaxOutputTokens: m.MaxOutputTokens, Seed: m.Seed},
		Attempts:      attempts,
		OutputPaths: OutputPaths{
			RawModelOutput: artifacts.RawModelOutputFile,
			Conversation:   artifacts.ConversationFile,
			Summary:        artifacts.SummaryFile,
		},
	}
}

// BuildCohort writes the top subjects by admission count and returns the
// CSV path.
func (s *Service) BuildCohort(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		return "", fmt.Errorf("cohort limit must be positive, got %d", limit)
	}
	rows, err := s.repo.TopSubjectsByAdmissionCount(ctx, limit)
	if err != nil {
		return "", err
	}
	path := s.layout.CohortCSV(limit)
	if err := artifacts.WriteCohortCSV(path, rows); err != nil {
		return "", err
	}
	s.logger.Info().Int("subjects", len(rows)).Str("path", path).Msg("cohort written")
	return path, nil
}
