package record

import (
	"context"
	"errors"
)

// ErrAdmissionNotFound reports a (subject_id, hadm_id) pair with no
// admission or patient row.
var ErrAdmissionNotFound = errors.New("admission not found")

// Repository reads one subject's records. Every list comes back in its
// category's deterministic source order.
type Repository interface {
	// ScopeSubject narrows subsequent reads to one subject.
	ScopeSubject(ctx context.Context, subjectID int64) error

	ListAdmissions(ctx context.Context, subjectID int64) ([]AdmissionSummary, error)
	TopSubjectsByAdmissionCount(ctx context.Context, limit int) ([]SubjectAdmissionCount, error)
	GetAdmissionPatient(ctx context.Context, subjectID, hadmID int64) (*AdmissionPatient, error)

	// Location timeline
	ListTransfers(ctx context.Context, subjectID, hadmID int64) ([]Transfer, error)
	ListServices(ctx context.Context, subjectID, hadmID int64) ([]Service, error)

	// Labs and microbiology. The proximal variants return rows with a null
	// hadm_id charted within the padded admission window.
	ListLabEvents(ctx context.Context, subjectID, hadmID int64) ([]LabEvent, error)
	ListProximalLabEvents(ctx context.Context, subjectID, hadmID int64, padHours int) ([]LabEvent, error)
	ListMicroEvents(ctx context.Context, subjectID, hadmID int64) ([]MicroEvent, error)
	ListProximalMicroEvents(ctx context.Context, subjectID, hadmID int64, padHours int) ([]MicroEvent, error)

	// Orders
	ListPOE(ctx context.Context, subjectID, hadmID int64) ([]POE, error)
	ListPOEDetails(ctx context.Context, subjectID, hadmID int64) ([]POEDetail, error)
	ListPrescriptions(ctx context.Context, subjectID, hadmID int64) ([]Prescription, error)
	ListPharmacy(ctx context.Context, subjectID, hadmID int64) ([]Pharmacy, error)
	// EMAR candidates are rows linked to hadmID or with a null hadm_id.
	ListEMARCandidates(ctx context.Context, subjectID, hadmID int64) ([]EMAR, error)
	ListEMARDetailCandidates(ctx context.Context, subjectID, hadmID int64) ([]EMARDetail, error)

	// Billing
	ListDiagnoses(ctx context.Context, subjectID, hadmID int64) ([]Diagnosis, error)
	ListProcedures(ctx context.Context, subjectID, hadmID int64) ([]Procedure, error)
	ListDRGCodes(ctx context.Context, subjectID, hadmID int64) ([]DRG, error)

	// Notes
	ListDischargeNotes(ctx context.Context, subjectID, hadmID int64) ([]Note, error)
	ListDischargeNoteDetails(ctx context.Context, subjectID, hadmID int64) ([]NoteDetail, error)
	ListRadiologyNotes(ctx context.Context, subjectID, hadmID int64) ([]Note, error)
	ListRadiologyNoteDetails(ctx context.Context, subjectID, hadmID int64) ([]NoteDetail, error)
	ListUnlinkedRadiologyNotes(ctx context.Context, subjectID int64) ([]Note, error)

	ListICUStays(ctx context.Context, subjectID, hadmID int64) ([]ICUStay, error)
}
