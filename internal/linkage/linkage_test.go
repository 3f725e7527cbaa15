package linkage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/platform/db/dbtest"
)

func at(s string) *record.Timestamp {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return record.At(t)
}

func i64p(n int64) *int64 { return &n }
func strp(s string) *string { return &s }

func emarIDs(rows []record.EMAR) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EMARID)
	}
	return out
}

func baseScope() EMARScope {
	return EMARScope{
		HadmID:             10,
		AdmitTime:          at("2180-01-01 08:00"),
		DischTime:          at("2180-01-03 08:00"),
		Pharmacy:           []record.Pharmacy{{PharmacyID: i64p(500)}},
		POE:                []record.POE{{POEID: "1-77"}},
		TimeWindowFallback: true,
	}
}

func TestResolveEMAR_Precedence(t *testing.T) {
	candidates := []record.EMAR{
		{EMARID: "direct", HadmID: i64p(10), ChartTime: at("2180-01-01 09:00")},
		{EMARID: "other-adm", HadmID: i64p(11), PharmacyID: i64p(500), ChartTime: at("2180-01-01 09:30")},
		{EMARID: "via-pharm", PharmacyID: i64p(500), POEID: strp("1-77"), ChartTime: at("2180-01-01 10:00")},
		{EMARID: "via-poe", POEID: strp("1-77"), ChartTime: at("2180-01-01 11:00")},
		{EMARID: "via-window", ChartTime: at("2180-01-02 12:00")},
		{EMARID: "outside", ChartTime: at("2180-01-05 12:00")},
		{EMARID: "no-time"},
	}

	selected, counts := ResolveEMAR(candidates, baseScope())

	want := []string{"direct", "via-pharm", "via-poe", "via-window"}
	if diff := cmp.Diff(want, emarIDs(selected)); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	wantCounts := EMARCounts{
		DirectHadm:          1,
		LinkedViaPharmacyID: 1,
		LinkedViaPOEID:      1,
		LinkedViaTimeWindow: 1,
		ExcludedNullHadm:    3,
	}
	if diff := cmp.Diff(wantCounts, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEMAR_OutsideWindowExcludedWithFallback(t *testing.T) {
	scope := baseScope()
	scope.Pharmacy = nil
	scope.POE = nil

	selected, counts := ResolveEMAR([]record.EMAR{
		{EMARID: "late", ChartTime: at("2180-01-03 08:01")},
	}, scope)
	if len(selected) != 0 {
		t.Fatalf("expected no selection, got %v", emarIDs(selected))
	}
	if counts.ExcludedNullHadm != 1 || counts.LinkedViaTimeWindow != 0 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestResolveEMAR_WindowIsInclusive(t *testing.T) {
	scope := baseScope()
	selected, _ := ResolveEMAR([]record.EMAR{
		{EMARID: "at-admit", ChartTime: at("2180-01-01 08:00")},
		{EMARID: "at-disch", ChartTime: at("2180-01-03 08:00")},
	}, scope)
	if diff := cmp.Diff([]string{"at-admit", "at-disch"}, emarIDs(selected)); diff != "" {
		t.Errorf("boundary mismatch (-want +got):\n%s", diff)
	}

	scope.TimeWindowFallback = false
	selected, counts := ResolveEMAR([]record.EMAR{{EMARID: "at-admit", ChartTime: at("2180-01-01 08:00")}}, scope)
	if len(selected) != 0 || counts.ExcludedNullHadm != 1 {
		t.Errorf("expected exclusion without fallback, got %v %+v", emarIDs(selected), counts)
	}

	scope.TimeWindowFallback = true
	scope.DischTime = nil
	selected, _ = ResolveEMAR([]record.EMAR{{EMARID: "no-disch", ChartTime: at("2180-01-01 09:00")}}, scope)
	if len(selected) != 0 {
		t.Error("expected exclusion when dischtime is unknown")
	}
}

func TestResolveEMAR_SortAndDedupe(t *testing.T) {
	selected, counts := ResolveEMAR([]record.EMAR{
		{EMARID: "b", HadmID: i64p(10), EMARSeq: i64p(2)},
		{EMARID: "a", HadmID: i64p(10), EMARSeq: i64p(2)},
		{EMARID: "c", HadmID: i64p(10), ChartTime: at("2180-01-01 09:00"), EMARSeq: i64p(9)},
		{EMARID: "c", HadmID: i64p(10), ChartTime: at("2180-01-01 09:00"), EMARSeq: i64p(9)},
		{EMARID: "d", HadmID: i64p(10), EMARSeq: i64p(1)},
	}, baseScope())

	if diff := cmp.Diff([]string{"c", "d", "a", "b"}, emarIDs(selected)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if counts.DirectHadm != 5 {
		t.Errorf("expected duplicates counted before dedupe, got %d", counts.DirectHadm)
	}
}

func TestFilterEMARDetails(t *testing.T) {
	details := []record.EMARDetail{{EMARID: "x", DoseGiven: strp("1")}, {EMARID: "y"}, {EMARID: "x", DoseGiven: strp("2")}}
	got := FilterEMARDetails(details, []record.EMAR{{EMARID: "x"}})
	if len(got) != 2 || *got[1].DoseGiven != "2" {
		t.Errorf("unexpected details %+v", got)
	}
}

func TestMergeLabs_DedupesAndSorts(t *testing.T) {
	direct := []record.LabEvent{
		{LabEventID: 3, ChartTime: at("2180-01-01 12:00"), Value: strp("direct")},
		{LabEventID: 1, ChartTime: nil},
	}
	proximal := []record.LabEvent{
		{LabEventID: 2, ChartTime: at("2180-01-01 07:00")},
		{LabEventID: 3, ChartTime: at("2180-01-01 12:00"), Value: strp("proximal")},
	}

	got := MergeLabs(direct, proximal)
	var ids []int64
	for _, l := range got {
		ids = append(ids, l.LabEventID)
	}
	if diff := cmp.Diff([]int64{2, 3, 1}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if *got[1].Value != "direct" {
		t.Errorf("expected direct copy to win, got %s", *got[1].Value)
	}
}

func TestMergeMicro_ChartDateBreaksTies(t *testing.T) {
	got := MergeMicro(
		[]record.MicroEvent{{MicroEventID: 9, ChartDate: at("2180-01-02 00:00")}},
		[]record.MicroEvent{{MicroEventID: 8, ChartDate: at("2180-01-01 00:00")}},
	)
	if got[0].MicroEventID != 8 {
		t.Errorf("expected earlier chartdate first, got %d", got[0].MicroEventID)
	}
}

func TestResolver_LabsWithPadding(t *testing.T) {
	ctx := context.Background()
	s := dbtest.NewStore(t)
	dbtest.Insert(t, s, "hosp_admissions", map[string]any{
		"subject_id": int64(1), "hadm_id": int64(10),
		"admittime": dbtest.At(t, "2180-01-01 08:00:00"), "dischtime": dbtest.At(t, "2180-01-01 13:00:00"),
	})
	dbtest.Insert(t, s, "hosp_labevents", map[string]any{
		"labevent_id": int64(1), "subject_id": int64(1), "charttime": dbtest.At(t, "2180-01-01 15:00:00"),
	})
	dbtest.Insert(t, s, "hosp_labevents", map[string]any{
		"labevent_id": int64(2), "subject_id": int64(1), "hadm_id": int64(10), "charttime": dbtest.At(t, "2180-01-01 09:00:00"),
	})
	repo := record.NewRepo(s, zerolog.Nop())

	for _, tc := range []struct {
		pad      int
		wantIDs  []int64
		proximal int
	}{
		{pad: 0, wantIDs: []int64{2}, proximal: 0},
		{pad: 3, wantIDs: []int64{2, 1}, proximal: 1},
	} {
		r := NewResolver(repo, Options{ProximalLabs: true, PaddingHours: tc.pad}, zerolog.Nop())
		qc := QueryCounts{}
		labs, counts, err := r.Labs(ctx, 1, 10, qc)
		if err != nil {
			t.Fatalf("pad %d: Labs() error: %v", tc.pad, err)
		}
		var ids []int64
		for _, l := range labs {
			ids = append(ids, l.LabEventID)
		}
		if diff := cmp.Diff(tc.wantIDs, ids); diff != "" {
			t.Errorf("pad %d: labs mismatch (-want +got):\n%s", tc.pad, diff)
		}
		if counts.StrictHadm != 1 || counts.ProximalNullHadm != tc.proximal {
			t.Errorf("pad %d: unexpected counts %+v", tc.pad, counts)
		}
		if qc["labs_proximal"] != tc.proximal {
			t.Errorf("pad %d: query count = %d", tc.pad, qc["labs_proximal"])
		}
	}
}

func TestResolver_UnlinkedRadiologyDisabled(t *testing.T) {
	s := dbtest.NewStore(t)
	r := NewResolver(record.NewRepo(s, zerolog.Nop()), Options{}, zerolog.Nop())
	qc := QueryCounts{}
	notes, err := r.UnlinkedRadiology(context.Background(), 1, qc)
	if err != nil || notes != nil {
		t.Fatalf("expected nil notes and no error, got %v %v", notes, err)
	}
	if _, ok := qc["radiology_unlinked"]; ok {
		t.Error("expected no query count when disabled")
	}
}
