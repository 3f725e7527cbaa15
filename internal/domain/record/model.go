// Package record holds the typed MIMIC-IV rows the pipeline works with and
// the repository that reads them from the row store.
package record

// AdmissionPatient is the joined hosp_admissions and hosp_patients row that
// anchors a packet.
type AdmissionPatient struct {
	SubjectID          int64      `db:"subject_id"`
	HadmID             int64      `db:"hadm_id"`
	AdmitTime          *Timestamp `db:"admittime"`
	DischTime          *Timestamp `db:"dischtime"`
	DeathTime          *Timestamp `db:"deathtime"`
	AdmissionType      *string    `db:"admission_type"`
	AdmitProviderID    *string    `db:"admit_provider_id"`
	AdmissionLocation  *string    `db:"admission_location"`
	DischargeLocation  *string    `db:"discharge_location"`
	Insurance          *string    `db:"insurance"`
	Language           *string    `db:"language"`
	MaritalStatus      *string    `db:"marital_status"`
	Race               *string    `db:"race"`
	EDRegTime          *Timestamp `db:"edregtime"`
	EDOutTime          *Timestamp `db:"edouttime"`
	HospitalExpireFlag *int64     `db:"hospital_expire_flag"`
	Gender             *string    `db:"gender"`
	AnchorAge          *int64     `db:"anchor_age"`
	AnchorYear         *int64     `db:"anchor_year"`
	AnchorYearGroup    *string    `db:"anchor_year_group"`
	DOD                *Timestamp `db:"dod"`
}

// AdmissionSummary is one row of a subject's admission listing.
type AdmissionSummary struct {
	SubjectID          int64      `db:"subject_id" json:"subject_id"`
	HadmID             int64      `db:"hadm_id" json:"hadm_id"`
	AdmitTime          *Timestamp `db:"admittime" json:"admittime"`
	DischTime          *Timestamp `db:"dischtime" json:"dischtime"`
	DischargeNoteCount int64      `db:"discharge_note_count" json:"discharge_note_count"`
}

// SubjectAdmissionCount is one cohort row.
type SubjectAdmissionCount struct {
	SubjectID   int64 `db:"subject_id"`
	NAdmissions int64 `db:"n_admissions"`
}

type Transfer struct {
	SubjectID  int64      `db:"subject_id" json:"-"`
	HadmID     *int64     `db:"hadm_id" json:"-"`
	TransferID *int64     `db:"transfer_id" json:"transfer_id"`
	EventType  *string    `db:"eventtype" json:"eventtype"`
	CareUnit   *string    `db:"careunit" json:"careunit"`
	InTime     *Timestamp `db:"intime" json:"intime"`
	OutTime    *Timestamp `db:"outtime" json:"outtime"`
}

type Service struct {
	SubjectID    int64      `db:"subject_id" json:"-"`
	HadmID       *int64     `db:"hadm_id" json:"-"`
	TransferTime *Timestamp `db:"transfertime" json:"transfertime"`
	PrevService  *string    `db:"prev_service" json:"prev_service"`
	CurrService  *string    `db:"curr_service" json:"curr_service"`
}

// LabEvent carries the d_labitems label columns alongside the measurement.
type LabEvent struct {
	LabEventID      int64      `db:"labevent_id" json:"labevent_id"`
	SubjectID       int64      `db:"subject_id" json:"-"`
	HadmID          *int64     `db:"hadm_id" json:"-"`
	SpecimenID      *int64     `db:"specimen_id" json:"specimen_id"`
	ItemID          *int64     `db:"itemid" json:"itemid"`
	OrderProviderID *string    `db:"order_provider_id" json:"order_provider_id"`
	ChartTime       *Timestamp `db:"charttime" json:"charttime"`
	StoreTime       *Timestamp `db:"storetime" json:"storetime"`
	Value           *string    `db:"value" json:"value"`
	ValueNum        *float64   `db:"valuenum" json:"valuenum"`
	ValueUOM        *string    `db:"valueuom" json:"valueuom"`
	RefRangeLower   *float64   `db:"ref_range_lower" json:"ref_range_lower"`
	RefRangeUpper   *float64   `db:"ref_range_upper" json:"ref_range_upper"`
	Flag            *string    `db:"flag" json:"flag"`
	Priority        *string    `db:"priority" json:"priority"`
	Comments        *string    `db:"comments" json:"comments"`
	Label           *string    `db:"label" json:"label"`
	Fluid           *string    `db:"fluid" json:"fluid"`
	Category        *string    `db:"category" json:"category"`
}

type MicroEvent struct {
	MicroEventID       int64      `db:"microevent_id" json:"microevent_id"`
	SubjectID          int64      `db:"subject_id" json:"-"`
	HadmID             *int64     `db:"hadm_id" json:"-"`
	MicroSpecimenID    *int64     `db:"micro_specimen_id" json:"micro_specimen_id"`
	OrderProviderID    *string    `db:"order_provider_id" json:"order_provider_id"`
	ChartDate          *Timestamp `db:"chartdate" json:"chartdate"`
	ChartTime          *Timestamp `db:"charttime" json:"charttime"`
	StoreDate          *Timestamp `db:"storedate" json:"storedate"`
	StoreTime          *Timestamp `db:"storetime" json:"storetime"`
	SpecItemID         *int64     `db:"spec_itemid" json:"spec_itemid"`
	SpecTypeDesc       *string    `db:"spec_type_desc" json:"spec_type_desc"`
	TestSeq            *int64     `db:"test_seq" json:"test_seq"`
	TestItemID         *int64     `db:"test_itemid" json:"test_itemid"`
	TestName           *string    `db:"test_name" json:"test_name"`
	OrgItemID          *int64     `db:"org_itemid" json:"org_itemid"`
	OrgName            *string    `db:"org_name" json:"org_name"`
	IsolateNum         *int64     `db:"isolate_num" json:"isolate_num"`
	Quantity           *string    `db:"quantity" json:"quantity"`
	ABItemID           *int64     `db:"ab_itemid" json:"ab_itemid"`
	ABName             *string    `db:"ab_name" json:"ab_name"`
	DilutionText       *string    `db:"dilution_text" json:"dilution_text"`
	DilutionComparison *string    `db:"dilution_comparison" json:"dilution_comparison"`
	DilutionValue      *float64   `db:"dilution_value" json:"dilution_value"`
	Interpretation     *string    `db:"interpretation" json:"interpretation"`
	Comments           *string    `db:"comments" json:"comments"`
}

// POE is a provider order entry.
type POE struct {
	POEID               string     `db:"poe_id" json:"poe_id"`
	POESeq              *int64     `db:"poe_seq" json:"poe_seq"`
	SubjectID           int64      `db:"subject_id" json:"-"`
	HadmID              *int64     `db:"hadm_id" json:"-"`
	OrderTime           *Timestamp `db:"ordertime" json:"ordertime"`
	OrderType           *string    `db:"order_type" json:"order_type"`
	OrderSubtype        *string    `db:"order_subtype" json:"order_subtype"`
	TransactionType     *string    `db:"transaction_type" json:"transaction_type"`
	DiscontinueOfPOEID  *string    `db:"discontinue_of_poe_id" json:"discontinue_of_poe_id"`
	DiscontinuedByPOEID *string    `db:"discontinued_by_poe_id" json:"discontinued_by_poe_id"`
	OrderProviderID     *string    `db:"order_provider_id" json:"order_provider_id"`
	OrderStatus         *string    `db:"order_status" json:"order_status"`
}

type POEDetail struct {
	POEID      string  `db:"poe_id" json:"poe_id"`
	POESeq     *int64  `db:"poe_seq" json:"poe_seq"`
	SubjectID  int64   `db:"subject_id" json:"-"`
	FieldName  *string `db:"field_name" json:"field_name"`
	FieldValue *string `db:"field_value" json:"field_value"`
}

type Prescription struct {
	SubjectID       int64      `db:"subject_id" json:"-"`
	HadmID          *int64     `db:"hadm_id" json:"-"`
	PharmacyID      *int64     `db:"pharmacy_id" json:"pharmacy_id"`
	POEID           *string    `db:"poe_id" json:"poe_id"`
	POESeq          *int64     `db:"poe_seq" json:"poe_seq"`
	OrderProviderID *string    `db:"order_provider_id" json:"order_provider_id"`
	StartTime       *Timestamp `db:"starttime" json:"starttime"`
	StopTime        *Timestamp `db:"stoptime" json:"stoptime"`
	DrugType        *string    `db:"drug_type" json:"drug_type"`
	Drug            *string    `db:"drug" json:"drug"`
	FormularyDrugCD *string    `db:"formulary_drug_cd" json:"formulary_drug_cd"`
	GSN             *string    `db:"gsn" json:"gsn"`
	NDC             *string    `db:"ndc" json:"ndc"`
	ProdStrength    *string    `db:"prod_strength" json:"prod_strength"`
	FormRx          *string    `db:"form_rx" json:"form_rx"`
	DoseValRx       *string    `db:"dose_val_rx" json:"dose_val_rx"`
	DoseUnitRx      *string    `db:"dose_unit_rx" json:"dose_unit_rx"`
	FormValDisp     *string    `db:"form_val_disp" json:"form_val_disp"`
	FormUnitDisp    *string    `db:"form_unit_disp" json:"form_unit_disp"`
	DosesPer24Hrs   *float64   `db:"doses_per_24_hrs" json:"doses_per_24_hrs"`
	Route           *string    `db:"route" json:"route"`
}

type Pharmacy struct {
	SubjectID        int64      `db:"subject_id" json:"-"`
	HadmID           *int64     `db:"hadm_id" json:"-"`
	PharmacyID       *int64     `db:"pharmacy_id" json:"pharmacy_id"`
	POEID            *string    `db:"poe_id" json:"poe_id"`
	StartTime        *Timestamp `db:"starttime" json:"starttime"`
	StopTime         *Timestamp `db:"stoptime" json:"stoptime"`
	Medication       *string    `db:"medication" json:"medication"`
	ProcType         *string    `db:"proc_type" json:"proc_type"`
	Status           *string    `db:"status" json:"status"`
	EnterTime        *Timestamp `db:"entertime" json:"entertime"`
	VerifiedTime     *Timestamp `db:"verifiedtime" json:"verifiedtime"`
	Route            *string    `db:"route" json:"route"`
	Frequency        *string    `db:"frequency" json:"frequency"`
	DispSched        *string    `db:"disp_sched" json:"disp_sched"`
	InfusionType     *string    `db:"infusion_type" json:"infusion_type"`
	SlidingScale     *string    `db:"sliding_scale" json:"sliding_scale"`
	LockoutInterval  *string    `db:"lockout_interval" json:"lockout_interval"`
	BasalRate        *string    `db:"basal_rate" json:"basal_rate"`
	OneHrMax         *string    `db:"one_hr_max" json:"one_hr_max"`
	DosesPer24Hrs    *string    `db:"doses_per_24_hrs" json:"doses_per_24_hrs"`
	Duration         *string    `db:"duration" json:"duration"`
	DurationInterval *string    `db:"duration_interval" json:"duration_interval"`
	ExpirationValue  *string    `db:"expiration_value" json:"expiration_value"`
	ExpirationUnit   *string    `db:"expiration_unit" json:"expiration_unit"`
	ExpirationDate   *Timestamp `db:"expirationdate" json:"expirationdate"`
	Dispensation     *string    `db:"dispensation" json:"dispensation"`
	FillQuantity     *string    `db:"fill_quantity" json:"fill_quantity"`
}

// EMAR is one medication administration event.
type EMAR struct {
	SubjectID       int64      `db:"subject_id" json:"-"`
	HadmID          *int64     `db:"hadm_id" json:"-"`
	EMARID          string     `db:"emar_id" json:"emar_id"`
	EMARSeq         *int64     `db:"emar_seq" json:"emar_seq"`
	POEID           *string    `db:"poe_id" json:"poe_id"`
	PharmacyID      *int64     `db:"pharmacy_id" json:"pharmacy_id"`
	EnterProviderID *string    `db:"enter_provider_id" json:"enter_provider_id"`
	ChartTime       *Timestamp `db:"charttime" json:"charttime"`
	Medication      *string    `db:"medication" json:"medication"`
	EventTxt        *string    `db:"event_txt" json:"event_txt"`
	ScheduleTime    *Timestamp `db:"scheduletime" json:"scheduletime"`
	StoreTime       *Timestamp `db:"storetime" json:"storetime"`
}

type EMARDetail struct {
	SubjectID            int64   `db:"subject_id" json:"-"`
	EMARID               string  `db:"emar_id" json:"emar_id"`
	EMARSeq              *int64  `db:"emar_seq" json:"emar_seq"`
	ParentFieldOrdinal   *string `db:"parent_field_ordinal" json:"parent_field_ordinal"`
	AdministrationType   *string `db:"administration_type" json:"administration_type"`
	PharmacyID           *string `db:"pharmacy_id" json:"pharmacy_id"`
	ReasonForNoBarcode   *string `db:"reason_for_no_barcode" json:"reason_for_no_barcode"`
	CompleteDoseNotGiven *string `db:"complete_dose_not_given" json:"complete_dose_not_given"`
	DoseDue              *string `db:"dose_due" json:"dose_due"`
	DoseDueUnit          *string `db:"dose_due_unit" json:"dose_due_unit"`
	DoseGiven            *string `db:"dose_given" json:"dose_given"`
	DoseGivenUnit        *string `db:"dose_given_unit" json:"dose_given_unit"`
	ProductCode          *string `db:"product_code" json:"product_code"`
	ProductDescription   *string `db:"product_description" json:"product_description"`
	PriorInfusionRate    *string `db:"prior_infusion_rate" json:"prior_infusion_rate"`
	InfusionRate         *string `db:"infusion_rate" json:"infusion_rate"`
	InfusionRateUnit     *string `db:"infusion_rate_unit" json:"infusion_rate_unit"`
	Route                *string `db:"route" json:"route"`
}

// Diagnosis carries the d_icd_diagnoses long title.
type Diagnosis struct {
	SubjectID  int64   `db:"subject_id" json:"-"`
	HadmID     int64   `db:"hadm_id" json:"-"`
	SeqNum     *int64  `db:"seq_num" json:"seq_num"`
	ICDCode    *string `db:"icd_code" json:"icd_code"`
	ICDVersion *int64  `db:"icd_version" json:"icd_version"`
	LongTitle  *string `db:"long_title" json:"long_title"`
}

type Procedure struct {
	SubjectID  int64      `db:"subject_id" json:"-"`
	HadmID     int64      `db:"hadm_id" json:"-"`
	SeqNum     *int64     `db:"seq_num" json:"seq_num"`
	ChartDate  *Timestamp `db:"chartdate" json:"chartdate"`
	ICDCode    *string    `db:"icd_code" json:"icd_code"`
	ICDVersion *int64     `db:"icd_version" json:"icd_version"`
	LongTitle  *string    `db:"long_title" json:"long_title"`
}

type DRG struct {
	SubjectID    int64   `db:"subject_id" json:"-"`
	HadmID       int64   `db:"hadm_id" json:"-"`
	DRGType      *string `db:"drg_type" json:"drg_type"`
	DRGCode      *string `db:"drg_code" json:"drg_code"`
	Description  *string `db:"description" json:"description"`
	DRGSeverity  *int64  `db:"drg_severity" json:"drg_severity"`
	DRGMortality *int64  `db:"drg_mortality" json:"drg_mortality"`
}

// Note is a discharge or radiology note.
type Note struct {
	NoteID    string     `db:"note_id" json:"note_id"`
	SubjectID int64      `db:"subject_id" json:"-"`
	HadmID    *int64     `db:"hadm_id" json:"-"`
	NoteType  *string    `db:"note_type" json:"note_type"`
	NoteSeq   *int64     `db:"note_seq" json:"note_seq"`
	ChartTime *Timestamp `db:"charttime" json:"charttime"`
	StoreTime *Timestamp `db:"storetime" json:"storetime"`
	Text      *string    `db:"text" json:"text"`
}

type NoteDetail struct {
	NoteID       string  `db:"note_id" json:"note_id"`
	SubjectID    int64   `db:"subject_id" json:"-"`
	FieldName    *string `db:"field_name" json:"field_name"`
	FieldValue   *string `db:"field_value" json:"field_value"`
	FieldOrdinal *int64  `db:"field_ordinal" json:"field_ordinal"`
}

type ICUStay struct {
	SubjectID     int64      `db:"subject_id" json:"-"`
	HadmID        int64      `db:"hadm_id" json:"-"`
	StayID        int64      `db:"stay_id" json:"stay_id"`
	FirstCareUnit *string    `db:"first_careunit" json:"first_careunit"`
	LastCareUnit  *string    `db:"last_careunit" json:"last_careunit"`
	InTime        *Timestamp `db:"intime" json:"intime"`
	OutTime       *Timestamp `db:"outtime" json:"outtime"`
	LOS           *float64   `db:"los" json:"los"`
}
