package packet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/config"
	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/linkage"
)

// Options fixes everything an extraction depends on besides source rows.
type Options struct {
	PacketSchemaVersion   string
	ManifestSchemaVersion string
	BenchmarkVersion      string
	Datasets              DatasetVersions
	Linkage               linkage.Options
	Policies              linkage.Policies
	Truncation            config.Ruleset
	IncludeICUStays       bool
	RequireDischargeNote  bool
}

// OptionsFromConfig derives extraction options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PacketSchemaVersion:   cfg.PacketSchemaVersion,
		ManifestSchemaVersion: cfg.ManifestSchemaVersion,
		BenchmarkVersion:      cfg.BenchmarkVersion,
		Datasets: DatasetVersions{
			MIMICIV:     cfg.MIMICIVVersion,
			MIMICIVNote: cfg.MIMICIVNoteVersion,
		},
		Linkage: linkage.Options{
			ProximalLabs:             cfg.ProximalLabCapture,
			ProximalMicro:            cfg.ProximalMicroCapture,
			PaddingHours:             cfg.ProximalPaddingHours,
			EMARTimeWindowFallback:   cfg.EmarTimeWindowFallback,
			IncludeUnlinkedRadiology: cfg.IncludeUnlinkedRadiology,
		},
		Policies:             linkage.DefaultPolicies(),
		Truncation:           cfg.Truncation.Clone(),
		IncludeICUStays:      cfg.IncludeICUStays,
		RequireDischargeNote: cfg.RequireDischargeNote,
	}
}

// UnlinkedNote is a radiology note with no hadm_id, kept out of the packet
// and written to the unlinked notes side file.
type UnlinkedNote struct {
	SubjectID int64  `json:"subject_id"`
	HadmID    *int64 `json:"hadm_id"`
	record.Note
}

// Result is everything one extraction produces.
type Result struct {
	Packet            *Packet
	Manifest          *InputDataManifest
	UnlinkedRadiology []UnlinkedNote
}

// Assembler extracts admissions into packets.
type Assembler struct {
	repo     record.Repository
	resolver *linkage.Resolver
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAssembler(repo record.Repository, opts Options, logger zerolog.Logger) *Assembler {
	return &Assembler{
		repo:     repo,
		resolver: linkage.NewResolver(repo, opts.Linkage, logger),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func query[T any](ctx context.Context, qc linkage.QueryCounts, key string, subjectID, hadmID int64,
	list func(context.Context, int64, int64) ([]T, error)) ([]T, error) {
	rows, err := list(ctx, subjectID, hadmID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", key, err)
	}
	qc.Record(key, len(rows))
	return rows, nil
}

// sourceRows holds every category after linkage and before truncation.
type sourceRows struct {
	transfers       []record.Transfer
	services        []record.Service
	labs            []record.LabEvent
	micro           []record.MicroEvent
	poe             []record.POE
	poeDetail       []record.POEDetail
	prescriptions   []record.Prescription
	pharmacy        []record.Pharmacy
	emar            []record.EMAR
	emarDetail      []record.EMARDetail
	diagnoses       []record.Diagnosis
	procedures      []record.Procedure
	drg             []record.DRG
	discharge       []record.Note
	dischargeDetail []record.NoteDetail
	radiology       []record.Note
	radiologyDetail []record.NoteDetail
	unlinked        []record.Note
	icu             []record.ICUStay

	labCounts   linkage.ProximalCounts
	microCounts linkage.ProximalCounts
	emarCounts  linkage.EMARCounts
}

// Extract builds the packet and manifest for one admission. The same source
// rows and Options always produce the same packet bytes.
func (a *Assembler) Extract(ctx context.Context, subjectID, hadmID int64) (*Result, error) {
	ap, err := a.repo.GetAdmissionPatient(ctx, subjectID, hadmID)
	if err != nil {
		return nil, err
	}
	if ap.AdmitTime == nil {
		return nil, fmt.Errorf("subject %d admission %d: %w", subjectID, hadmID, ErrMissingAdmitTime)
	}

	qc := linkage.QueryCounts{}
	src, err := a.fetch(ctx, ap, qc)
	if err != nil {
		return nil, fmt.Errorf("extract subject %d admission %d: %w", subjectID, hadmID, err)
	}

	trunc := newTruncation(a.opts.Truncation)
	p := a.shape(ap, src, trunc)
	hash, err := p.Seal()
	if err != nil {
		return nil, err
	}

	eids, err := EIDSet(p)
	if err != nil {
		return nil, fmt.Errorf("collect eids: %w", err)
	}

	manifest := &InputDataManifest{
		SchemaVersion:          a.opts.ManifestSchemaVersion,
		BenchmarkVersion:       a.opts.BenchmarkVersion,
		DatasetVersions:        a.opts.Datasets,
		IDs:                    p.IDs,
		ExtractionTimestampUTC: a.now().UTC().Format("2006-01-02T15:04:05Z"),
		TablesUsed:             tablesUsed(qc, trunc.counts),
		NullHandlingPolicies:   a.opts.Policies,
		PolicyCaptureCounts: PolicyCaptureCounts{
			Labs:         src.labCounts,
			Microbiology: src.microCounts,
			EMAR:         src.emarCounts,
			Radiology: linkage.RadiologyCounts{
				LinkedHadm:           p.PacketStats.RowCounts.Radiology,
				UnlinkedHadmExcluded: len(src.unlinked),
			},
		},
		Truncation: TruncationReport{
			Applied:          trunc.applied,
			RulesetID:        a.opts.Truncation.ID,
			PerSectionLimits: a.opts.Truncation.Caps,
			PerSectionCounts: trunc.counts,
		},
		Hashes:         ManifestHashes{PacketSHA256: hash},
		PacketEIDCount: len(eids),
	}

	unlinked := make([]UnlinkedNote, 0, len(src.unlinked))
	for _, n := range src.unlinked {
		unlinked = append(unlinked, UnlinkedNote{SubjectID: n.SubjectID, HadmID: n.HadmID, Note: n})
	}

	a.logger.Debug().
		Int64("subject_id", subjectID).
		Int64("hadm_id", hadmID).
		Int("eids", len(eids)).
		Bool("truncated", trunc.applied).
		Str("packet_sha256", hash).
		Msg("packet extracted")

	return &Result{Packet: p, Manifest: manifest, UnlinkedRadiology: unlinked}, nil
}

func (a *Assembler) fetch(ctx context.Context, ap *record.AdmissionPatient, qc linkage.QueryCounts) (*sourceRows, error) {
	s, h := ap.SubjectID, ap.HadmID
	src := &sourceRows{}
	var err error

	if src.transfers, err = query(ctx, qc, "transfers", s, h, a.repo.ListTransfers); err != nil {
		return nil, err
	}
	if src.services, err = query(ctx, qc, "services", s, h, a.repo.ListServices); err != nil {
		return nil, err
	}
	if src.labs, src.labCounts, err = a.resolver.Labs(ctx, s, h, qc); err != nil {
		return nil, fmt.Errorf("labs: %w", err)
	}
	if src.micro, src.microCounts, err = a.resolver.Microbiology(ctx, s, h, qc); err != nil {
		return nil, fmt.Errorf("microbiology: %w", err)
	}
	if src.poe, err = query(ctx, qc, "poe", s, h, a.repo.ListPOE); err != nil {
		return nil, err
	}
	if src.poeDetail, err = query(ctx, qc, "poe_detail", s, h, a.repo.ListPOEDetails); err != nil {
		return nil, err
	}
	if src.prescriptions, err = query(ctx, qc, "prescriptions", s, h, a.repo.ListPrescriptions); err != nil {
		return nil, err
	}
	if src.pharmacy, err = query(ctx, qc, "pharmacy", s, h, a.repo.ListPharmacy); err != nil {
		return nil, err
	}

	scope := linkage.EMARScope{
		HadmID:    h,
		AdmitTime: ap.AdmitTime,
		DischTime: ap.DischTime,
		Pharmacy:  src.pharmacy,
		POE:       src.poe,
	}
	if src.emar, src.emarDetail, src.emarCounts, err = a.resolver.EMAR(ctx, s, scope, qc); err != nil {
		return nil, fmt.Errorf("emar: %w", err)
	}

	if src.diagnoses, err = query(ctx, qc, "diagnoses_icd", s, h, a.repo.ListDiagnoses); err != nil {
		return nil, err
	}
	if src.procedures, err = query(ctx, qc, "procedures_icd", s, h, a.repo.ListProcedures); err != nil {
		return nil, err
	}
	if src.drg, err = query(ctx, qc, "drgcodes", s, h, a.repo.ListDRGCodes); err != nil {
		return nil, err
	}
	if src.discharge, err = query(ctx, qc, "discharge", s, h, a.repo.ListDischargeNotes); err != nil {
		return nil, err
	}
	if a.opts.RequireDischargeNote && len(src.discharge) == 0 {
		return nil, ErrNoDischargeNote
	}
	if src.dischargeDetail, err = query(ctx, qc, "discharge_detail", s, h, a.repo.ListDischargeNoteDetails); err != nil {
		return nil, err
	}
	if src.radiology, err = query(ctx, qc, "radiology", s, h, a.repo.ListRadiologyNotes); err != nil {
		return nil, err
	}
	if src.radiologyDetail, err = query(ctx, qc, "radiology_detail", s, h, a.repo.ListRadiologyNoteDetails); err != nil {
		return nil, err
	}
	if src.unlinked, err = a.resolver.UnlinkedRadiology(ctx, s, qc); err != nil {
		return nil, fmt.Errorf("unlinked radiology: %w", err)
	}
	if a.opts.IncludeICUStays {
		if src.icu, err = query(ctx, qc, "icustays", s, h, a.repo.ListICUStays); err != nil {
			return nil, err
		}
	}

	a.logger.Debug().
		Int64("hadm_id", h).
		Interface("query_counts", qc).
		Msg("source rows fetched")
	return src, nil
}

// shape truncates every section in packet order, then numbers the survivors.
func (a *Assembler) shape(ap *record.AdmissionPatient, src *sourceRows, t *truncation) *Packet {
	admit := ap.AdmitTime.Time

	transfers := truncate(t, "transfers", src.transfers)
	services := truncate(t, "services", src.services)
	discharge := truncate(t, "discharge", src.discharge)
	dischargeDetail := truncate(t, "discharge_detail", src.dischargeDetail)
	radiology := truncate(t, "radiology", src.radiology)
	radiologyDetail := truncate(t, "radiology_detail", src.radiologyDetail)
	labs := truncate(t, "labs", src.labs)
	micro := truncate(t, "microbiology", src.micro)
	poe := truncate(t, "poe", src.poe)
	poeDetail := truncate(t, "poe_detail", src.poeDetail)
	prescriptions := truncate(t, "prescriptions", src.prescriptions)
	pharmacy := truncate(t, "pharmacy", src.pharmacy)
	emar := truncate(t, "emar", src.emar)
	emarDetail := truncate(t, "emar_detail", src.emarDetail)
	diagnoses := truncate(t, "diagnoses_icd", src.diagnoses)
	procedures := truncate(t, "procedures_icd", src.procedures)
	drg := truncate(t, "drgcodes", src.drg)
	icu := truncate(t, "icustays", src.icu)

	p := &Packet{
		PacketSchemaVersion: a.opts.PacketSchemaVersion,
		BenchmarkVersion:    a.opts.BenchmarkVersion,
		DatasetVersions:     a.opts.Datasets,
		IDs:                 IDs{SubjectID: ap.SubjectID, HadmID: ap.HadmID},
		TimeBasis: TimeBasis{
			AdmitTime:        ap.AdmitTime,
			DischTime:        ap.DischTime,
			Timezone:         Timezone,
			RelativeTimeUnit: RelativeTimeUnit,
		},
		Patient: Patient{
			EID:             PatientEID,
			Gender:          ap.Gender,
			AnchorAge:       ap.AnchorAge,
			AnchorYear:      ap.AnchorYear,
			AnchorYearGroup: ap.AnchorYearGroup,
			DOD:             ap.DOD,
		},
		Admission: Admission{
			EID:                AdmissionEID,
			DeathTime:          ap.DeathTime,
			AdmissionType:      ap.AdmissionType,
			AdmitProviderID:    ap.AdmitProviderID,
			AdmissionLocation:  ap.AdmissionLocation,
			DischargeLocation:  ap.DischargeLocation,
			Insurance:          ap.Insurance,
			Language:           ap.Language,
			MaritalStatus:      ap.MaritalStatus,
			Race:               ap.Race,
			EDRegTime:          ap.EDRegTime,
			EDOutTime:          ap.EDOutTime,
			HospitalExpireFlag: ap.HospitalExpireFlag,
		},
		LocationTimeline: LocationTimeline{
			Transfers: attach("XFER", transfers, func(r record.Transfer) []RelTime {
				return relMin(admit, r.InTime)
			}),
			Services: attach("SVC", services, func(r record.Service) []RelTime {
				return relMin(admit, r.TransferTime)
			}),
		},
		Notes: Notes{
			Discharge: attach("DS", discharge, func(r record.Note) []RelTime {
				return relMin(admit, r.ChartTime)
			}),
			DischargeDetail: attach[record.NoteDetail]("DSD", dischargeDetail, nil),
			Radiology: attach("RAD", radiology, func(r record.Note) []RelTime {
				return relMin(admit, r.ChartTime)
			}),
			RadiologyDetail: attach[record.NoteDetail]("RADD", radiologyDetail, nil),
		},
		Labs: attach("LAB", labs, func(r record.LabEvent) []RelTime {
			return relMin(admit, r.ChartTime, r.StoreTime)
		}),
		Microbiology: attach("MICRO", micro, func(r record.MicroEvent) []RelTime {
			return relMin(admit, r.ChartTime, r.ChartDate, r.StoreTime, r.StoreDate)
		}),
		Orders: Orders{
			POE: attach("POE", poe, func(r record.POE) []RelTime {
				return relMin(admit, r.OrderTime)
			}),
			POEDetail: attach[record.POEDetail]("POED", poeDetail, nil),
			Prescriptions: attach("RX", prescriptions, func(r record.Prescription) []RelTime {
				return relMin(admit, r.StartTime, r.StopTime)
			}),
			Pharmacy: attach("PHARM", pharmacy, func(r record.Pharmacy) []RelTime {
				return relMin(admit, r.EnterTime, r.StartTime)
			}),
			EMAR: attach("EMAR", emar, func(r record.EMAR) []RelTime {
				return relMin(admit, r.ChartTime, r.ScheduleTime, r.StoreTime)
			}),
			EMARDetail: attach[record.EMARDetail]("EMD", emarDetail, nil),
		},
		Billing: Billing{
			DiagnosesICD: attach[record.Diagnosis]("DX", diagnoses, nil),
			ProceduresICD: attach("PX", procedures, func(r record.Procedure) []RelTime {
				return relMin(admit, r.ChartDate)
			}),
			DRGCodes: attach[record.DRG]("DRG", drg, nil),
		},
		ICU: ICU{
			HasICUStay: len(icu) > 0,
			ICUStays: attach("ICU", icu, func(r record.ICUStay) []RelTime {
				return []RelTime{
					{Field: "t_in_min", Minutes: Minutes(admit, r.InTime)},
					{Field: "t_out_min", Minutes: Minutes(admit, r.OutTime)},
				}
			}),
		},
	}
	p.PacketStats.RowCounts = RowCounts{
		Transfers:          len(transfers),
		Services:           len(services),
		LabEvents:          len(labs),
		MicrobiologyEvents: len(micro),
		Radiology:          len(radiology),
		Discharge:          len(discharge),
	}
	return p
}
