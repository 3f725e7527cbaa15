// Package packet builds the canonical, hash-sealed record of one hospital
// admission and the provenance manifest that travels with it.
package packet

import (
	"errors"
	"fmt"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

var (
	ErrMissingAdmitTime = errors.New("admission has no admittime")
	ErrNoDischargeNote  = errors.New("admission has no discharge note")
	ErrHashMismatch     = errors.New("packet hash does not match content")
)

const (
	Timezone         = "DEIDENTIFIED/UNKNOWN"
	RelativeTimeUnit = "minutes_since_admit"
)

type DatasetVersions struct {
	MIMICIV     string `json:"mimiciv"`
	MIMICIVNote string `json:"mimiciv_note"`
}

type IDs struct {
	SubjectID int64 `json:"subject_id"`
	HadmID    int64 `json:"hadm_id"`
}

type TimeBasis struct {
	AdmitTime        *record.Timestamp `json:"admittime"`
	DischTime        *record.Timestamp `json:"dischtime"`
	Timezone         string            `json:"timezone"`
	RelativeTimeUnit string            `json:"relative_time_unit"`
}

type Patient struct {
	EID             string            `json:"eid"`
	Gender          *string           `json:"gender"`
	AnchorAge       *int64            `json:"anchor_age"`
	AnchorYear      *int64            `json:"anchor_year"`
	AnchorYearGroup *string           `json:"anchor_year_group"`
	DOD             *record.Timestamp `json:"dod"`
}

type Admission struct {
	EID                string            `json:"eid"`
	DeathTime          *record.Timestamp `json:"deathtime"`
	AdmissionType      *string           `json:"admission_type"`
	AdmitProviderID    *string           `json:"admit_provider_id"`
	AdmissionLocation  *string           `json:"admission_location"`
	DischargeLocation  *string           `json:"discharge_location"`
	Insurance          *string           `json:"insurance"`
	Language           *string           `json:"language"`
	MaritalStatus      *string           `json:"marital_status"`
	Race               *string           `json:"race"`
	EDRegTime          *record.Timestamp `json:"edregtime"`
	EDOutTime          *record.Timestamp `json:"edouttime"`
	HospitalExpireFlag *int64            `json:"hospital_expire_flag"`
}

type LocationTimeline struct {
	Transfers []Entry `json:"transfers"`
	Services  []Entry `json:"services"`
}

type Notes struct {
	Discharge       []Entry `json:"discharge"`
	DischargeDetail []Entry `json:"discharge_detail"`
	Radiology       []Entry `json:"radiology"`
	RadiologyDetail []Entry `json:"radiology_detail"`
}

type Orders struct {
	POE           []Entry `json:"poe"`
	POEDetail     []Entry `json:"poe_detail"`
	Prescriptions []Entry `json:"prescriptions"`
	Pharmacy      []Entry `json:"pharmacy"`
	EMAR          []Entry `json:"emar"`
	EMARDetail    []Entry `json:"emar_detail"`
}

type Billing struct {
	DiagnosesICD  []Entry `json:"diagnoses_icd"`
	ProceduresICD []Entry `json:"procedures_icd"`
	DRGCodes      []Entry `json:"drgcodes"`
}

type ICU struct {
	HasICUStay bool    `json:"has_icu_stay"`
	ICUStays   []Entry `json:"icustays"`
}

type RowCounts struct {
	Transfers          int `json:"transfers"`
	Services           int `json:"services"`
	LabEvents          int `json:"labevents"`
	MicrobiologyEvents int `json:"microbiologyevents"`
	Radiology          int `json:"radiology"`
	Discharge          int `json:"discharge"`
}

type Stats struct {
	RowCounts RowCounts `json:"row_counts"`
	// SHA256 is null while the hash is computed and set afterwards.
	SHA256 *string `json:"sha256_canonical_packet"`
}

// Packet is the evidence-tagged snapshot of one admission. Field order is
// the section layout of packet.json.
type Packet struct {
	PacketSchemaVersion string           `json:"packet_schema_version"`
	BenchmarkVersion    string           `json:"benchmark_version"`
	DatasetVersions     DatasetVersions  `json:"dataset_versions"`
	IDs                 IDs              `json:"ids"`
	TimeBasis           TimeBasis        `json:"time_basis"`
	Patient             Patient          `json:"patient"`
	Admission           Admission        `json:"admission"`
	LocationTimeline    LocationTimeline `json:"location_timeline"`
	Notes               Notes            `json:"notes"`
	Labs                []Entry          `json:"labs"`
	Microbiology        []Entry          `json:"microbiology"`
	Orders              Orders           `json:"orders"`
	Billing             Billing          `json:"billing"`
	ICU                 ICU              `json:"icu"`
	PacketStats         Stats            `json:"packet_stats"`
}

// Hash returns the SHA-256 of the canonical encoding of p with the hash
// field set to null. p is not modified.
func (p *Packet) Hash() (string, error) {
	unsealed := *p
	unsealed.PacketStats.SHA256 = nil
	h, err := canonjson.Hash(unsealed)
	if err != nil {
		return "", fmt.Errorf("hash packet %d: %w", p.IDs.HadmID, err)
	}
	return h, nil
}

// Seal computes the content hash and embeds it.
func (p *Packet) Seal() (string, error) {
	h, err := p.Hash()
	if err != nil {
		return "", err
	}
	p.PacketStats.SHA256 = &h
	return h, nil
}

// SHA256 returns the embedded hash, empty before Seal.
func (p *Packet) SHA256() string {
	if p.PacketStats.SHA256 == nil {
		return ""
	}
	return *p.PacketStats.SHA256
}

// Verify recomputes the content hash and compares it with the embedded one.
func (p *Packet) Verify() error {
	h, err := p.Hash()
	if err != nil {
		return err
	}
	if h != p.SHA256() {
		return fmt.Errorf("%w: embedded %q, computed %q", ErrHashMismatch, p.SHA256(), h)
	}
	return nil
}

// Canonical returns the canonical JSON text of the sealed packet.
func (p *Packet) Canonical() (string, error) {
	return canonjson.MarshalString(p)
}

// DischargeMinutes is the dischtime offset from admission, or nil when the
// admission has no dischtime.
func (p *Packet) DischargeMinutes() *int64 {
	if p.TimeBasis.AdmitTime == nil {
		return nil
	}
	return Minutes(p.TimeBasis.AdmitTime.Time, p.TimeBasis.DischTime)
}
