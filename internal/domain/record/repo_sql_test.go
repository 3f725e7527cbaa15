package record

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/platform/db"
	"github.com/leozzy13/Health-Benchmark/internal/platform/db/dbtest"
)

func seedAdmission(t *testing.T, s db.Store, subject, hadm int64, admit, disch string) {
	t.Helper()
	row := map[string]any{
		"subject_id":     subject,
		"hadm_id":        hadm,
		"admittime":      dbtest.At(t, admit),
		"admission_type": "URGENT",
	}
	if disch != "" {
		row["dischtime"] = dbtest.At(t, disch)
	}
	dbtest.Insert(t, s, "hosp_admissions", row)
}

func TestGetAdmissionPatient(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	dbtest.Insert(t, s, "hosp_patients", map[string]any{
		"subject_id": int64(1), "gender": "F", "anchor_age": 61, "anchor_year": 2180, "dod": "2183-02-01",
	})
	seedAdmission(t, s, 1, 10, "2180-01-01 08:00:00", "2180-01-03 12:30:00")

	ap, err := repo.GetAdmissionPatient(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GetAdmissionPatient() error: %v", err)
	}
	if got := ap.AdmitTime.String(); got != "2180-01-01T08:00:00" {
		t.Errorf("admittime = %s", got)
	}
	if ap.DeathTime != nil {
		t.Errorf("expected nil deathtime, got %v", ap.DeathTime)
	}
	if ap.Gender == nil || *ap.Gender != "F" {
		t.Errorf("gender = %v", ap.Gender)
	}
	if ap.AnchorAge == nil || *ap.AnchorAge != 61 {
		t.Errorf("anchor_age = %v", ap.AnchorAge)
	}
	if got := ap.DOD.String(); got != "2183-02-01T00:00:00" {
		t.Errorf("dod = %s", got)
	}

	_, err = repo.GetAdmissionPatient(ctx, 1, 99)
	if !errors.Is(err, ErrAdmissionNotFound) {
		t.Errorf("expected ErrAdmissionNotFound, got %v", err)
	}
}

func TestGetAdmissionPatient_UnparsedTimestampLogged(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	var buf bytes.Buffer
	repo := NewRepo(s, zerolog.New(&buf))

	dbtest.Insert(t, s, "hosp_patients", map[string]any{
		"subject_id": int64(1), "gender": "M", "dod": "sometime in 2183",
	})
	seedAdmission(t, s, 1, 10, "2180-01-01 08:00:00", "")

	ap, err := repo.GetAdmissionPatient(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GetAdmissionPatient() error: %v", err)
	}
	if ap.DOD != nil {
		t.Errorf("dod = %v, want nil", ap.DOD)
	}
	out := buf.String()
	if !strings.Contains(out, `"column":"dod"`) || !strings.Contains(out, "sometime in 2183") {
		t.Errorf("expected a warning naming the dod column, got %q", out)
	}
	if strings.Contains(out, `"column":"dischtime"`) {
		t.Errorf("NULL dischtime logged as unparsed: %q", out)
	}
}

func TestListAdmissions_OrderAndDischargeCounts(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	seedAdmission(t, s, 1, 30, "2181-01-01 00:00:00", "2181-01-02 00:00:00")
	seedAdmission(t, s, 1, 20, "2180-01-01 00:00:00", "2180-01-02 00:00:00")
	seedAdmission(t, s, 1, 10, "2180-01-01 00:00:00", "2180-01-02 00:00:00")
	seedAdmission(t, s, 2, 40, "2179-01-01 00:00:00", "")
	for _, id := range []string{"n1", "n2"} {
		dbtest.Insert(t, s, "note_discharge", map[string]any{"note_id": id, "subject_id": int64(1), "hadm_id": int64(20)})
	}

	got, err := repo.ListAdmissions(ctx, 1)
	if err != nil {
		t.Fatalf("ListAdmissions() error: %v", err)
	}
	var ids []int64
	counts := map[int64]int64{}
	for _, a := range got {
		ids = append(ids, a.HadmID)
		counts[a.HadmID] = a.DischargeNoteCount
	}
	if diff := cmp.Diff([]int64{10, 20, 30}, ids); diff != "" {
		t.Errorf("admission order mismatch (-want +got):\n%s", diff)
	}
	if counts[20] != 2 || counts[10] != 0 {
		t.Errorf("unexpected discharge counts: %v", counts)
	}
}

func TestListProximalLabEvents_Window(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	// Five hour admission; the unlinked lab is charted two hours after discharge.
	seedAdmission(t, s, 1, 10, "2180-01-01 08:00:00", "2180-01-01 13:00:00")
	dbtest.Insert(t, s, "hosp_d_labitems", map[string]any{"itemid": int64(50912), "label": "Creatinine"})
	dbtest.Insert(t, s, "hosp_labevents", map[string]any{
		"labevent_id": int64(1), "subject_id": int64(1), "itemid": int64(50912),
		"charttime": dbtest.At(t, "2180-01-01 15:00:00"), "valuenum": 1.2,
	})
	dbtest.Insert(t, s, "hosp_labevents", map[string]any{
		"labevent_id": int64(2), "subject_id": int64(1), "hadm_id": int64(10), "itemid": int64(50912),
		"charttime": dbtest.At(t, "2180-01-01 09:00:00"),
	})

	got, err := repo.ListProximalLabEvents(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("ListProximalLabEvents(pad=0) error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no proximal labs with pad 0, got %d", len(got))
	}

	got, err = repo.ListProximalLabEvents(ctx, 1, 10, 3)
	if err != nil {
		t.Fatalf("ListProximalLabEvents(pad=3) error: %v", err)
	}
	if len(got) != 1 || got[0].LabEventID != 1 {
		t.Fatalf("expected lab 1 with pad 3, got %+v", got)
	}
	if got[0].Label == nil || *got[0].Label != "Creatinine" {
		t.Errorf("expected joined label, got %v", got[0].Label)
	}
	if got[0].ValueNum == nil || *got[0].ValueNum != 1.2 {
		t.Errorf("valuenum = %v", got[0].ValueNum)
	}

	direct, err := repo.ListLabEvents(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListLabEvents() error: %v", err)
	}
	if len(direct) != 1 || direct[0].LabEventID != 2 {
		t.Errorf("expected only the linked lab, got %+v", direct)
	}
}

func TestListProximalMicroEvents_UsesChartDate(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	seedAdmission(t, s, 1, 10, "2180-01-01 00:00:00", "2180-01-03 00:00:00")
	dbtest.Insert(t, s, "hosp_microbiologyevents", map[string]any{
		"microevent_id": int64(5), "subject_id": int64(1), "chartdate": "2180-01-02",
	})
	dbtest.Insert(t, s, "hosp_microbiologyevents", map[string]any{
		"microevent_id": int64(6), "subject_id": int64(1), "chartdate": "2180-01-09",
	})

	got, err := repo.ListProximalMicroEvents(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("ListProximalMicroEvents() error: %v", err)
	}
	if len(got) != 1 || got[0].MicroEventID != 5 {
		t.Fatalf("expected micro 5 only, got %+v", got)
	}
	if got[0].ChartTime != nil {
		t.Errorf("expected nil charttime, got %v", got[0].ChartTime)
	}
}

func TestListEMARCandidates(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	dbtest.Insert(t, s, "hosp_emar", map[string]any{"subject_id": int64(1), "hadm_id": int64(10), "emar_id": "1-1", "emar_seq": 1})
	dbtest.Insert(t, s, "hosp_emar", map[string]any{"subject_id": int64(1), "emar_id": "1-2", "emar_seq": 2})
	dbtest.Insert(t, s, "hosp_emar", map[string]any{"subject_id": int64(1), "hadm_id": int64(11), "emar_id": "1-3", "emar_seq": 3})
	dbtest.Insert(t, s, "hosp_emar_detail", map[string]any{"subject_id": int64(1), "emar_id": "1-2", "dose_given": "5"})
	dbtest.Insert(t, s, "hosp_emar_detail", map[string]any{"subject_id": int64(1), "emar_id": "1-3", "dose_given": "7"})

	got, err := repo.ListEMARCandidates(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListEMARCandidates() error: %v", err)
	}
	var ids []string
	for _, e := range got {
		ids = append(ids, e.EMARID)
	}
	if diff := cmp.Diff([]string{"1-1", "1-2"}, ids); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	details, err := repo.ListEMARDetailCandidates(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListEMARDetailCandidates() error: %v", err)
	}
	if len(details) != 1 || details[0].EMARID != "1-2" {
		t.Errorf("expected detail for 1-2 only, got %+v", details)
	}
}

func TestTopSubjectsByAdmissionCount(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	repo := NewRepo(s, zerolog.Nop())

	seedAdmission(t, s, 3, 30, "2180-01-01 00:00:00", "")
	seedAdmission(t, s, 2, 20, "2180-01-01 00:00:00", "")
	seedAdmission(t, s, 2, 21, "2180-02-01 00:00:00", "")
	seedAdmission(t, s, 1, 10, "2180-01-01 00:00:00", "")

	got, err := repo.TopSubjectsByAdmissionCount(ctx, 2)
	if err != nil {
		t.Fatalf("TopSubjectsByAdmissionCount() error: %v", err)
	}
	want := []SubjectAdmissionCount{{SubjectID: 2, NAdmissions: 2}, {SubjectID: 1, NAdmissions: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cohort mismatch (-want +got):\n%s", diff)
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := At(dbtest.At(t, "2180-05-06 22:23:00"))
	b, err := ts.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if string(b) != `"2180-05-06T22:23:00"` {
		t.Errorf("unexpected JSON %s", b)
	}

	var back Timestamp
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}
	if !back.Equal(ts.Time) {
		t.Errorf("round trip mismatch: %v vs %v", back, ts)
	}

	if CompareTime(nil, ts) != 1 || CompareTime(ts, nil) != -1 {
		t.Error("expected nil timestamps to sort last")
	}
}
