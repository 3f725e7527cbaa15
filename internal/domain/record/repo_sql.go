package record

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/platform/db"
)

type repoSQL struct {
	store  db.Store
	logger zerolog.Logger
}

// NewRepo returns a Repository over either row store backend.
func NewRepo(store db.Store, logger zerolog.Logger) Repository {
	return &repoSQL{store: store, logger: logger.With().Str("component", "record").Logger()}
}

func list[T any](ctx context.Context, q db.Querier, what, query string, scan func(db.Row) T, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, scan(row))
	}
	return out, nil
}

// ts reads a timestamp column. Text that matches no known layout is logged
// with its column and read as missing.
func (r *repoSQL) ts(row db.Row, col string) *Timestamp {
	t, err := row.CheckedTime(col)
	if err != nil {
		r.logger.Warn().Err(err).Str("column", col).Msg("unparsed timestamp read as null")
	}
	if t == nil {
		return nil
	}
	return At(*t)
}

func str(r db.Row, col string) string {
	if s := r.String(col); s != nil {
		return *s
	}
	return ""
}

func i64(r db.Row, col string) int64 {
	if n := r.Int64(col); n != nil {
		return *n
	}
	return 0
}

func (r *repoSQL) ScopeSubject(ctx context.Context, subjectID int64) error {
	return r.store.ScopeSubject(ctx, subjectID)
}

func (r *repoSQL) ListAdmissions(ctx context.Context, subjectID int64) ([]AdmissionSummary, error) {
	out, err := list(ctx, r.store, "admissions", `
		SELECT a.subject_id, a.hadm_id, a.admittime, a.dischtime,
		       COUNT(nd.note_id) AS discharge_note_count
		FROM hosp_admissions a
		LEFT JOIN note_discharge nd
		  ON a.subject_id = nd.subject_id AND a.hadm_id = nd.hadm_id
		WHERE a.subject_id = ?
		GROUP BY a.subject_id, a.hadm_id, a.admittime, a.dischtime`,
		func(row db.Row) AdmissionSummary {
			return AdmissionSummary{
				SubjectID:          i64(row, "subject_id"),
				HadmID:             i64(row, "hadm_id"),
				AdmitTime:          r.ts(row, "admittime"),
				DischTime:          r.ts(row, "dischtime"),
				DischargeNoteCount: i64(row, "discharge_note_count"),
			}
		}, subjectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := CompareTime(out[i].AdmitTime, out[j].AdmitTime); c != 0 {
			return c < 0
		}
		return out[i].HadmID < out[j].HadmID
	})
	return out, nil
}

func (r *repoSQL) TopSubjectsByAdmissionCount(ctx context.Context, limit int) ([]SubjectAdmissionCount, error) {
	return list(ctx, r.store, "cohort", `
		SELECT subject_id, COUNT(DISTINCT hadm_id) AS n_admissions
		FROM `+r.store.Dialect().BaseTable("hosp_admissions")+`
		GROUP BY subject_id
		ORDER BY n_admissions DESC, subject_id ASC
		LIMIT ?`,
		func(row db.Row) SubjectAdmissionCount {
			return SubjectAdmissionCount{SubjectID: i64(row, "subject_id"), NAdmissions: i64(row, "n_admissions")}
		}, limit)
}

func (r *repoSQL) GetAdmissionPatient(ctx context.Context, subjectID, hadmID int64) (*AdmissionPatient, error) {
	out, err := list(ctx, r.store, "admission", `
		SELECT
		  a.subject_id, a.hadm_id,
		  a.admittime, a.dischtime, a.deathtime,
		  a.admission_type, a.admit_provider_id,
		  a.admission_location, a.discharge_location,
		  a.insurance, a.language, a.marital_status, a.race,
		  a.edregtime, a.edouttime,
		  a.hospital_expire_flag,
		  p.gender, p.anchor_age, p.anchor_year, p.anchor_year_group, p.dod
		FROM hosp_admissions a
		JOIN hosp_patients p ON p.subject_id = a.subject_id
		WHERE a.subject_id = ? AND a.hadm_id = ?
		LIMIT 1`,
		func(row db.Row) AdmissionPatient {
			return AdmissionPatient{
				SubjectID:          i64(row, "subject_id"),
				HadmID:             i64(row, "hadm_id"),
				AdmitTime:          r.ts(row, "admittime"),
				DischTime:          r.ts(row, "dischtime"),
				DeathTime:          r.ts(row, "deathtime"),
				AdmissionType:      row.String("admission_type"),
				AdmitProviderID:    row.String("admit_provider_id"),
				AdmissionLocation:  row.String("admission_location"),
				DischargeLocation:  row.String("discharge_location"),
				Insurance:          row.String("insurance"),
				Language:           row.String("language"),
				MaritalStatus:      row.String("marital_status"),
				Race:               row.String("race"),
				EDRegTime:          r.ts(row, "edregtime"),
				EDOutTime:          r.ts(row, "edouttime"),
				HospitalExpireFlag: row.Int64("hospital_expire_flag"),
				Gender:             row.String("gender"),
				AnchorAge:          row.Int64("anchor_age"),
				AnchorYear:         row.Int64("anchor_year"),
				AnchorYearGroup:    row.String("anchor_year_group"),
				DOD:                r.ts(row, "dod"),
			}
		}, subjectID, hadmID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("subject_id=%d hadm_id=%d: %w", subjectID, hadmID, ErrAdmissionNotFound)
	}
	return &out[0], nil
}

func (r *repoSQL) ListTransfers(ctx context.Context, subjectID, hadmID int64) ([]Transfer, error) {
	return list(ctx, r.store, "transfers", `
		SELECT subject_id, hadm_id, transfer_id, eventtype, careunit, intime, outtime
		FROM hosp_transfers
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY intime ASC NULLS LAST, outtime ASC NULLS LAST, transfer_id ASC`,
		func(row db.Row) Transfer {
			return Transfer{
				SubjectID:  i64(row, "subject_id"),
				HadmID:     row.Int64("hadm_id"),
				TransferID: row.Int64("transfer_id"),
				EventType:  row.String("eventtype"),
				CareUnit:   row.String("careunit"),
				InTime:     r.ts(row, "intime"),
				OutTime:    r.ts(row, "outtime"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListServices(ctx context.Context, subjectID, hadmID int64) ([]Service, error) {
	return list(ctx, r.store, "services", `
		SELECT subject_id, hadm_id, transfertime, prev_service, curr_service
		FROM hosp_services
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY transfertime ASC NULLS LAST, curr_service ASC`,
		func(row db.Row) Service {
			return Service{
				SubjectID:    i64(row, "subject_id"),
				HadmID:       row.Int64("hadm_id"),
				TransferTime: r.ts(row, "transfertime"),
				PrevService:  row.String("prev_service"),
				CurrService:  row.String("curr_service"),
			}
		}, subjectID, hadmID)
}

const labCols = `
	  le.labevent_id, le.subject_id, le.hadm_id, le.specimen_id, le.itemid,
	  le.order_provider_id, le.charttime, le.storetime, le.value, le.valuenum,
	  le.valueuom, le.ref_range_lower, le.ref_range_upper, le.flag, le.priority,
	  le.comments,
	  dli.label, dli.fluid, dli.category`

const labOrder = `ORDER BY le.charttime ASC NULLS LAST, le.storetime ASC NULLS LAST, le.labevent_id ASC`

func (r *repoSQL) scanLab(row db.Row) LabEvent {
	return LabEvent{
		LabEventID:      i64(row, "labevent_id"),
		SubjectID:       i64(row, "subject_id"),
		HadmID:          row.Int64("hadm_id"),
		SpecimenID:      row.Int64("specimen_id"),
		ItemID:          row.Int64("itemid"),
		OrderProviderID: row.String("order_provider_id"),
		ChartTime:       r.ts(row, "charttime"),
		StoreTime:       r.ts(row, "storetime"),
		Value:           row.String("value"),
		ValueNum:        row.Float64("valuenum"),
		ValueUOM:        row.String("valueuom"),
		RefRangeLower:   row.Float64("ref_range_lower"),
		RefRangeUpper:   row.Float64("ref_range_upper"),
		Flag:            row.String("flag"),
		Priority:        row.String("priority"),
		Comments:        row.String("comments"),
		Label:           row.String("label"),
		Fluid:           row.String("fluid"),
		Category:        row.String("category"),
	}
}

func (r *repoSQL) ListLabEvents(ctx context.Context, subjectID, hadmID int64) ([]LabEvent, error) {
	return list(ctx, r.store, "labevents", `
		SELECT`+labCols+`
		FROM hosp_labevents le
		LEFT JOIN hosp_d_labitems dli ON dli.itemid = le.itemid
		WHERE le.subject_id = ? AND le.hadm_id = ?
		`+labOrder, r.scanLab, subjectID, hadmID)
}

// admissionWindow bounds an event time by the admission padded by a bound
// number of hours on each side. It consumes two placeholders: -pad, +pad.
func admissionWindow(d db.Dialect, eventExpr string) string {
	return eventExpr + ` BETWEEN ` + d.ShiftHours("a.admittime") +
		` AND ` + d.ShiftHours("COALESCE(a.dischtime, a.admittime)")
}

func (r *repoSQL) ListProximalLabEvents(ctx context.Context, subjectID, hadmID int64, padHours int) ([]LabEvent, error) {
	d := r.store.Dialect()
	return list(ctx, r.store, "proximal labevents", `
		SELECT`+labCols+`
		FROM hosp_labevents le
		LEFT JOIN hosp_d_labitems dli ON dli.itemid = le.itemid
		JOIN hosp_admissions a ON a.subject_id = le.subject_id
		WHERE le.subject_id = ?
		  AND le.hadm_id IS NULL
		  AND a.hadm_id = ?
		  AND `+admissionWindow(d, "le.charttime")+`
		`+labOrder, r.scanLab, subjectID, hadmID, -padHours, padHours)
}

const microCols = `
	  m.microevent_id, m.subject_id, m.hadm_id, m.micro_specimen_id, m.order_provider_id,
	  m.chartdate, m.charttime, m.storedate, m.storetime, m.spec_itemid, m.spec_type_desc,
	  m.test_seq, m.test_itemid, m.test_name, m.org_itemid, m.org_name, m.isolate_num,
	  m.quantity, m.ab_itemid, m.ab_name, m.dilution_text, m.dilution_comparison,
	  m.dilution_value, m.interpretation, m.comments`

const microOrder = `ORDER BY m.charttime ASC NULLS LAST, m.chartdate ASC NULLS LAST, m.storetime ASC NULLS LAST, m.microevent_id ASC`

func (r *repoSQL) scanMicro(row db.Row) MicroEvent {
	return MicroEvent{
		MicroEventID:       i64(row, "microevent_id"),
		SubjectID:          i64(row, "subject_id"),
		HadmID:             row.Int64("hadm_id"),
		MicroSpecimenID:    row.Int64("micro_specimen_id"),
		OrderProviderID:    row.String("order_provider_id"),
		ChartDate:          r.ts(row, "chartdate"),
		ChartTime:          r.ts(row, "charttime"),
		StoreDate:          r.ts(row, "storedate"),
		StoreTime:          r.ts(row, "storetime"),
		SpecItemID:         row.Int64("spec_itemid"),
		SpecTypeDesc:       row.String("spec_type_desc"),
		TestSeq:            row.Int64("test_seq"),
		TestItemID:         row.Int64("test_itemid"),
		TestName:           row.String("test_name"),
		OrgItemID:          row.Int64("org_itemid"),
		OrgName:            row.String("org_name"),
		IsolateNum:         row.Int64("isolate_num"),
		Quantity:           row.String("quantity"),
		ABItemID:           row.Int64("ab_itemid"),
		ABName:             row.String("ab_name"),
		DilutionText:       row.String("dilution_text"),
		DilutionComparison: row.String("dilution_comparison"),
		DilutionValue:      row.Float64("dilution_value"),
		Interpretation:     row.String("interpretation"),
		Comments:           row.String("comments"),
	}
}

func (r *repoSQL) ListMicroEvents(ctx context.Context, subjectID, hadmID int64) ([]MicroEvent, error) {
	return list(ctx, r.store, "microbiologyevents", `
		SELECT`+microCols+`
		FROM hosp_microbiologyevents m
		WHERE m.subject_id = ? AND m.hadm_id = ?
		`+microOrder, r.scanMicro, subjectID, hadmID)
}

func (r *repoSQL) ListProximalMicroEvents(ctx context.Context, subjectID, hadmID int64, padHours int) ([]MicroEvent, error) {
	d := r.store.Dialect()
	event := "COALESCE(m.charttime, " + d.AsTimestamp("m.chartdate") + ")"
	return list(ctx, r.store, "proximal microbiologyevents", `
		SELECT`+microCols+`
		FROM hosp_microbiologyevents m
		JOIN hosp_admissions a ON a.subject_id = m.subject_id
		WHERE m.subject_id = ?
		  AND m.hadm_id IS NULL
		  AND a.hadm_id = ?
		  AND `+admissionWindow(d, event)+`
		`+microOrder, r.scanMicro, subjectID, hadmID, -padHours, padHours)
}

func (r *repoSQL) ListPOE(ctx context.Context, subjectID, hadmID int64) ([]POE, error) {
	return list(ctx, r.store, "poe", `
		SELECT
		  poe_id, poe_seq, subject_id, hadm_id, ordertime, order_type, order_subtype,
		  transaction_type, discontinue_of_poe_id, discontinued_by_poe_id,
		  order_provider_id, order_status
		FROM hosp_poe
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY ordertime ASC NULLS LAST, poe_seq ASC`,
		func(row db.Row) POE {
			return POE{
				POEID:               str(row, "poe_id"),
				POESeq:              row.Int64("poe_seq"),
				SubjectID:           i64(row, "subject_id"),
				HadmID:              row.Int64("hadm_id"),
				OrderTime:           r.ts(row, "ordertime"),
				OrderType:           row.String("order_type"),
				OrderSubtype:        row.String("order_subtype"),
				TransactionType:     row.String("transaction_type"),
				DiscontinueOfPOEID:  row.String("discontinue_of_poe_id"),
				DiscontinuedByPOEID: row.String("discontinued_by_poe_id"),
				OrderProviderID:     row.String("order_provider_id"),
				OrderStatus:         row.String("order_status"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListPOEDetails(ctx context.Context, subjectID, hadmID int64) ([]POEDetail, error) {
	return list(ctx, r.store, "poe_detail", `
		SELECT poe_id, poe_seq, subject_id, field_name, field_value
		FROM hosp_poe_detail
		WHERE subject_id = ?
		  AND poe_id IN (
		    SELECT poe_id FROM hosp_poe WHERE subject_id = ? AND hadm_id = ?
		  )
		ORDER BY poe_seq ASC NULLS LAST, field_name ASC`,
		func(row db.Row) POEDetail {
			return POEDetail{
				POEID:      str(row, "poe_id"),
				POESeq:     row.Int64("poe_seq"),
				SubjectID:  i64(row, "subject_id"),
				FieldName:  row.String("field_name"),
				FieldValue: row.String("field_value"),
			}
		}, subjectID, subjectID, hadmID)
}

func (r *repoSQL) ListPrescriptions(ctx context.Context, subjectID, hadmID int64) ([]Prescription, error) {
	return list(ctx, r.store, "prescriptions", `
		SELECT
		  subject_id, hadm_id, pharmacy_id, poe_id, poe_seq, order_provider_id,
		  starttime, stoptime, drug_type, drug, formulary_drug_cd, gsn, ndc,
		  prod_strength, form_rx, dose_val_rx, dose_unit_rx, form_val_disp,
		  form_unit_disp, doses_per_24_hrs, route
		FROM hosp_prescriptions
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY starttime ASC NULLS LAST, stoptime ASC NULLS LAST, pharmacy_id ASC NULLS LAST`,
		func(row db.Row) Prescription {
			return Prescription{
				SubjectID:       i64(row, "subject_id"),
				HadmID:          row.Int64("hadm_id"),
				PharmacyID:      row.Int64("pharmacy_id"),
				POEID:           row.String("poe_id"),
				POESeq:          row.Int64("poe_seq"),
				OrderProviderID: row.String("order_provider_id"),
				StartTime:       r.ts(row, "starttime"),
				StopTime:        r.ts(row, "stoptime"),
				DrugType:        row.String("drug_type"),
				Drug:            row.String("drug"),
				FormularyDrugCD: row.String("formulary_drug_cd"),
				GSN:             row.String("gsn"),
				NDC:             row.String("ndc"),
				ProdStrength:    row.String("prod_strength"),
				FormRx:          row.String("form_rx"),
				DoseValRx:       row.String("dose_val_rx"),
				DoseUnitRx:      row.String("dose_unit_rx"),
				FormValDisp:     row.String("form_val_disp"),
				FormUnitDisp:    row.String("form_unit_disp"),
				DosesPer24Hrs:   row.Float64("doses_per_24_hrs"),
				Route:           row.String("route"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListPharmacy(ctx context.Context, subjectID, hadmID int64) ([]Pharmacy, error) {
	return list(ctx, r.store, "pharmacy", `
		SELECT
		  subject_id, hadm_id, pharmacy_id, poe_id, starttime, stoptime, medication, proc_type,
		  status, entertime, verifiedtime, route, frequency, disp_sched, infusion_type,
		  sliding_scale, lockout_interval, basal_rate, one_hr_max, doses_per_24_hrs,
		  duration, duration_interval, expiration_value, expiration_unit, expirationdate,
		  dispensation, fill_quantity
		FROM hosp_pharmacy
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY entertime ASC NULLS LAST, pharmacy_id ASC NULLS LAST`,
		func(row db.Row) Pharmacy {
			return Pharmacy{
				SubjectID:        i64(row, "subject_id"),
				HadmID:           row.Int64("hadm_id"),
				PharmacyID:       row.Int64("pharmacy_id"),
				POEID:            row.String("poe_id"),
				StartTime:        r.ts(row, "starttime"),
				StopTime:         r.ts(row, "stoptime"),
				Medication:       row.String("medication"),
				ProcType:         row.String("proc_type"),
				Status:           row.String("status"),
				EnterTime:        r.ts(row, "entertime"),
				VerifiedTime:     r.ts(row, "verifiedtime"),
				Route:            row.String("route"),
				Frequency:        row.String("frequency"),
				DispSched:        row.String("disp_sched"),
				InfusionType:     row.String("infusion_type"),
				SlidingScale:     row.String("sliding_scale"),
				LockoutInterval:  row.String("lockout_interval"),
				BasalRate:        row.String("basal_rate"),
				OneHrMax:         row.String("one_hr_max"),
				DosesPer24Hrs:    row.String("doses_per_24_hrs"),
				Duration:         row.String("duration"),
				DurationInterval: row.String("duration_interval"),
				ExpirationValue:  row.String("expiration_value"),
				ExpirationUnit:   row.String("expiration_unit"),
				ExpirationDate:   r.ts(row, "expirationdate"),
				Dispensation:     row.String("dispensation"),
				FillQuantity:     row.String("fill_quantity"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListEMARCandidates(ctx context.Context, subjectID, hadmID int64) ([]EMAR, error) {
	return list(ctx, r.store, "emar", `
		SELECT
		  subject_id, hadm_id, emar_id, emar_seq, poe_id, pharmacy_id, enter_provider_id,
		  charttime, medication, event_txt, scheduletime, storetime
		FROM hosp_emar
		WHERE subject_id = ? AND (hadm_id = ? OR hadm_id IS NULL)
		ORDER BY charttime ASC NULLS LAST, emar_seq ASC NULLS LAST`,
		func(row db.Row) EMAR {
			return EMAR{
				SubjectID:       i64(row, "subject_id"),
				HadmID:          row.Int64("hadm_id"),
				EMARID:          str(row, "emar_id"),
				EMARSeq:         row.Int64("emar_seq"),
				POEID:           row.String("poe_id"),
				PharmacyID:      row.Int64("pharmacy_id"),
				EnterProviderID: row.String("enter_provider_id"),
				ChartTime:       r.ts(row, "charttime"),
				Medication:      row.String("medication"),
				EventTxt:        row.String("event_txt"),
				ScheduleTime:    r.ts(row, "scheduletime"),
				StoreTime:       r.ts(row, "storetime"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListEMARDetailCandidates(ctx context.Context, subjectID, hadmID int64) ([]EMARDetail, error) {
	return list(ctx, r.store, "emar_detail", `
		SELECT
		  subject_id, emar_id, emar_seq, parent_field_ordinal, administration_type,
		  pharmacy_id, reason_for_no_barcode, complete_dose_not_given, dose_due, dose_due_unit,
		  dose_given, dose_given_unit, product_code, product_description, prior_infusion_rate,
		  infusion_rate, infusion_rate_unit, route
		FROM hosp_emar_detail
		WHERE subject_id = ?
		  AND emar_id IN (
		    SELECT emar_id FROM hosp_emar WHERE subject_id = ? AND (hadm_id = ? OR hadm_id IS NULL)
		  )
		ORDER BY emar_seq ASC NULLS LAST, parent_field_ordinal ASC NULLS LAST`,
		func(row db.Row) EMARDetail {
			return EMARDetail{
				SubjectID:            i64(row, "subject_id"),
				EMARID:               str(row, "emar_id"),
				EMARSeq:              row.Int64("emar_seq"),
				ParentFieldOrdinal:   row.String("parent_field_ordinal"),
				AdministrationType:   row.String("administration_type"),
				PharmacyID:           row.String("pharmacy_id"),
				ReasonForNoBarcode:   row.String("reason_for_no_barcode"),
				CompleteDoseNotGiven: row.String("complete_dose_not_given"),
				DoseDue:              row.String("dose_due"),
				DoseDueUnit:          row.String("dose_due_unit"),
				DoseGiven:            row.String("dose_given"),
				DoseGivenUnit:        row.String("dose_given_unit"),
				ProductCode:          row.String("product_code"),
				ProductDescription:   row.String("product_description"),
				PriorInfusionRate:    row.String("prior_infusion_rate"),
				InfusionRate:         row.String("infusion_rate"),
				InfusionRateUnit:     row.String("infusion_rate_unit"),
				Route:                row.String("route"),
			}
		}, subjectID, subjectID, hadmID)
}

func (r *repoSQL) ListDiagnoses(ctx context.Context, subjectID, hadmID int64) ([]Diagnosis, error) {
	return list(ctx, r.store, "diagnoses_icd", `
		SELECT di.subject_id, di.hadm_id, di.seq_num, di.icd_code, di.icd_version, dd.long_title
		FROM hosp_diagnoses_icd di
		LEFT JOIN hosp_d_icd_diagnoses dd
		  ON di.icd_code = dd.icd_code AND di.icd_version = dd.icd_version
		WHERE di.subject_id = ? AND di.hadm_id = ?
		ORDER BY di.seq_num ASC NULLS LAST, di.icd_code ASC`,
		func(row db.Row) Diagnosis {
			return Diagnosis{
				SubjectID:  i64(row, "subject_id"),
				HadmID:     i64(row, "hadm_id"),
				SeqNum:     row.Int64("seq_num"),
				ICDCode:    row.String("icd_code"),
				ICDVersion: row.Int64("icd_version"),
				LongTitle:  row.String("long_title"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListProcedures(ctx context.Context, subjectID, hadmID int64) ([]Procedure, error) {
	return list(ctx, r.store, "procedures_icd", `
		SELECT pi.subject_id, pi.hadm_id, pi.seq_num, pi.chartdate, pi.icd_code, pi.icd_version, dp.long_title
		FROM hosp_procedures_icd pi
		LEFT JOIN hosp_d_icd_procedures dp
		  ON pi.icd_code = dp.icd_code AND pi.icd_version = dp.icd_version
		WHERE pi.subject_id = ? AND pi.hadm_id = ?
		ORDER BY pi.chartdate ASC NULLS LAST, pi.seq_num ASC NULLS LAST, pi.icd_code ASC`,
		func(row db.Row) Procedure {
			return Procedure{
				SubjectID:  i64(row, "subject_id"),
				HadmID:     i64(row, "hadm_id"),
				SeqNum:     row.Int64("seq_num"),
				ChartDate:  r.ts(row, "chartdate"),
				ICDCode:    row.String("icd_code"),
				ICDVersion: row.Int64("icd_version"),
				LongTitle:  row.String("long_title"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) ListDRGCodes(ctx context.Context, subjectID, hadmID int64) ([]DRG, error) {
	return list(ctx, r.store, "drgcodes", `
		SELECT subject_id, hadm_id, drg_type, drg_code, description, drg_severity, drg_mortality
		FROM hosp_drgcodes
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY drg_type ASC NULLS LAST, drg_code ASC NULLS LAST`,
		func(row db.Row) DRG {
			return DRG{
				SubjectID:    i64(row, "subject_id"),
				HadmID:       i64(row, "hadm_id"),
				DRGType:      row.String("drg_type"),
				DRGCode:      row.String("drg_code"),
				Description:  row.String("description"),
				DRGSeverity:  row.Int64("drg_severity"),
				DRGMortality: row.Int64("drg_mortality"),
			}
		}, subjectID, hadmID)
}

func (r *repoSQL) scanNote(row db.Row) Note {
	return Note{
		NoteID:    str(row, "note_id"),
		SubjectID: i64(row, "subject_id"),
		HadmID:    row.Int64("hadm_id"),
		NoteType:  row.String("note_type"),
		NoteSeq:   row.Int64("note_seq"),
		ChartTime: r.ts(row, "charttime"),
		StoreTime: r.ts(row, "storetime"),
		Text:      row.String("text"),
	}
}

func scanNoteDetail(row db.Row) NoteDetail {
	return NoteDetail{
		NoteID:       str(row, "note_id"),
		SubjectID:    i64(row, "subject_id"),
		FieldName:    row.String("field_name"),
		FieldValue:   row.String("field_value"),
		FieldOrdinal: row.Int64("field_ordinal"),
	}
}

const noteCols = `note_id, subject_id, hadm_id, note_type, note_seq, charttime, storetime, text`

func (r *repoSQL) ListDischargeNotes(ctx context.Context, subjectID, hadmID int64) ([]Note, error) {
	return list(ctx, r.store, "discharge notes", `
		SELECT `+noteCols+`
		FROM note_discharge
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY note_type ASC NULLS LAST, note_seq ASC NULLS LAST`,
		r.scanNote, subjectID, hadmID)
}

func (r *repoSQL) ListDischargeNoteDetails(ctx context.Context, subjectID, hadmID int64) ([]NoteDetail, error) {
	return list(ctx, r.store, "discharge note details", `
		SELECT note_id, subject_id, field_name, field_value, field_ordinal
		FROM note_discharge_detail
		WHERE subject_id = ?
		  AND note_id IN (
		    SELECT note_id FROM note_discharge WHERE subject_id = ? AND hadm_id = ?
		  )
		ORDER BY note_id ASC, field_ordinal ASC NULLS LAST`,
		scanNoteDetail, subjectID, subjectID, hadmID)
}

func (r *repoSQL) ListRadiologyNotes(ctx context.Context, subjectID, hadmID int64) ([]Note, error) {
	return list(ctx, r.store, "radiology notes", `
		SELECT `+noteCols+`
		FROM note_radiology
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY charttime ASC NULLS LAST, note_seq ASC NULLS LAST`,
		r.scanNote, subjectID, hadmID)
}

func (r *repoSQL) ListRadiologyNoteDetails(ctx context.Context, subjectID, hadmID int64) ([]NoteDetail, error) {
	return list(ctx, r.store, "radiology note details", `
		SELECT note_id, subject_id, field_name, field_value, field_ordinal
		FROM note_radiology_detail
		WHERE subject_id = ?
		  AND note_id IN (
		    SELECT note_id FROM note_radiology WHERE subject_id = ? AND hadm_id = ?
		  )
		ORDER BY note_id ASC, field_ordinal ASC NULLS LAST`,
		scanNoteDetail, subjectID, subjectID, hadmID)
}

func (r *repoSQL) ListUnlinkedRadiologyNotes(ctx context.Context, subjectID int64) ([]Note, error) {
	return list(ctx, r.store, "unlinked radiology notes", `
		SELECT `+noteCols+`
		FROM note_radiology
		WHERE subject_id = ? AND hadm_id IS NULL
		ORDER BY charttime ASC NULLS LAST, note_seq ASC NULLS LAST`,
		r.scanNote, subjectID)
}

func (r *repoSQL) ListICUStays(ctx context.Context, subjectID, hadmID int64) ([]ICUStay, error) {
	return list(ctx, r.store, "icustays", `
		SELECT subject_id, hadm_id, stay_id, first_careunit, last_careunit, intime, outtime, los
		FROM icu_icustays
		WHERE subject_id = ? AND hadm_id = ?
		ORDER BY intime ASC NULLS LAST, stay_id ASC`,
		func(row db.Row) ICUStay {
			return ICUStay{
				SubjectID:     i64(row, "subject_id"),
				HadmID:        i64(row, "hadm_id"),
				StayID:        i64(row, "stay_id"),
				FirstCareUnit: row.String("first_careunit"),
				LastCareUnit:  row.String("last_careunit"),
				InTime:        r.ts(row, "intime"),
				OutTime:       r.ts(row, "outtime"),
				LOS:           row.Float64("los"),
			}
		}, subjectID, hadmID)
}
