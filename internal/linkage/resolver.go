package linkage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
)

type Options struct {
	ProximalLabs             bool
	ProximalMicro            bool
	PaddingHours             int
	EMARTimeWindowFallback   bool
	IncludeUnlinkedRadiology bool
}

// QueryCounts records the raw row count of every source query, keyed by
// query name (labs_strict, labs_proximal, emar_candidates, ...).
type QueryCounts map[string]int

func (q QueryCounts) Record(key string, n int) {
	q[key] = n
}

// Resolver applies the null-hadm policies while reading from a Repository.
type Resolver struct {
	repo   record.Repository
	opts   Options
	logger zerolog.Logger
}

func NewResolver(repo record.Repository, opts Options, logger zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, opts: opts, logger: logger}
}

// Labs returns linked labs plus, when enabled, unlinked labs charted inside
// the padded admission window.
func (r *Resolver) Labs(ctx context.Context, subjectID, hadmID int64, qc QueryCounts) ([]record.LabEvent, ProximalCounts, error) {
	direct, err := r.repo.ListLabEvents(ctx, subjectID, hadmID)
	if err != nil {
		return nil, ProximalCounts{}, err
	}
	qc.Record("labs_strict", len(direct))
	counts := ProximalCounts{StrictHadm: len(direct)}
	if !r.opts.ProximalLabs {
		return direct, counts, nil
	}

	proximal, err := r.repo.ListProximalLabEvents(ctx, subjectID, hadmID, r.opts.PaddingHours)
	if err != nil {
		return nil, ProximalCounts{}, err
	}
	qc.Record("labs_proximal", len(proximal))
	counts.ProximalNullHadm = len(proximal)
	metrics.RecordLinkage("labs", "proximal_null_hadm", len(proximal))

	r.logger.Debug().
		Int64("hadm_id", hadmID).
		Int("strict", len(direct)).
		Int("proximal", len(proximal)).
		Int("pad_hours", r.opts.PaddingHours).
		Msg("lab linkage resolved")
	return MergeLabs(direct, proximal), counts, nil
}

func (r *Resolver) Microbiology(ctx context.Context, subjectID, hadmID int64, qc QueryCounts) ([]record.MicroEvent, ProximalCounts, error) {
	direct, err := r.repo.ListMicroEvents(ctx, subjectID, hadmID)
	if err != nil {
		return nil, ProximalCounts{}, err
	}
	qc.Record("micro_strict", len(direct))
	counts := ProximalCounts{StrictHadm: len(direct)}
	if !r.opts.ProximalMicro {
		return direct, counts, nil
	}

	proximal, err := r.repo.ListProximalMicroEvents(ctx, subjectID, hadmID, r.opts.PaddingHours)
	if err != nil {
		return nil, ProximalCounts{}, err
	}
	qc.Record("micro_proximal", len(proximal))
	counts.ProximalNullHadm = len(proximal)
	metrics.RecordLinkage("microbiology", "proximal_null_hadm", len(proximal))
	return MergeMicro(direct, proximal), counts, nil
}

// EMAR resolves administrations and their detail rows. scope.HadmID and the
// admission window come from the caller; TimeWindowFallback comes from
// Options.
func (r *Resolver) EMAR(ctx context.Context, subjectID int64, scope EMARScope, qc QueryCounts) ([]record.EMAR, []record.EMARDetail, EMARCounts, error) {
	candidates, err := r.repo.ListEMARCandidates(ctx, subjectID, scope.HadmID)
	if err != nil {
		return nil, nil, EMARCounts{}, err
	}
	qc.Record("emar_candidates", len(candidates))

	scope.TimeWindowFallback = r.opts.EMARTimeWindowFallback
	selected, counts := ResolveEMAR(candidates, scope)
	for outcome, n := range counts.Outcomes() {
		metrics.RecordLinkage("emar", outcome, n)
	}

	details, err := r.repo.ListEMARDetailCandidates(ctx, subjectID, scope.HadmID)
	if err != nil {
		return nil, nil, EMARCounts{}, err
	}
	qc.Record("emar_detail_candidates", len(details))

	r.logger.Debug().
		Int64("hadm_id", scope.HadmID).
		Int("candidates", len(candidates)).
		Int("selected", len(selected)).
		Interface("outcomes", counts).
		Msg("emar linkage resolved")
	return selected, FilterEMARDetails(details, selected), counts, nil
}

// UnlinkedRadiology returns the subject's radiology notes with no hadm_id,
// or nil when the side channel is disabled. These never enter a packet.
func (r *Resolver) UnlinkedRadiology(ctx context.Context, subjectID int64, qc QueryCounts) ([]record.Note, error) {
	if !r.opts.IncludeUnlinkedRadiology {
		return nil, nil
	}
	notes, err := r.repo.ListUnlinkedRadiologyNotes(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	qc.Record("radiology_unlinked", len(notes))
	metrics.RecordLinkage("radiology", "unlinked_hadm_excluded", len(notes))
	return notes, nil
}
