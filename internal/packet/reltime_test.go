package packet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
)

func TestMinutes_FloorsTowardNegativeInfinity(t *testing.T) {
	admit := time.Date(2180, 1, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want int64
	}{
		{admit, 0},
		{admit.Add(59 * time.Second), 0},
		{admit.Add(90 * time.Minute), 90},
		{admit.Add(-30 * time.Second), -1},
		{admit.Add(-61 * time.Minute), -61},
	}
	for _, tt := range tests {
		got := Minutes(admit, record.At(tt.at))
		if got == nil || *got != tt.want {
			t.Errorf("Minutes(%s) = %v, want %d", tt.at.Format(time.TimeOnly), got, tt.want)
		}
	}
	if Minutes(admit, nil) != nil {
		t.Error("nil timestamp must give nil minutes")
	}
	if got := FirstMinutes(admit, nil, record.At(admit.Add(time.Hour))); got == nil || *got != 60 {
		t.Errorf("FirstMinutes() = %v, want 60", got)
	}
}

func TestFormatRelative(t *testing.T) {
	tests := map[int64]string{
		0:    "H+00:00",
		75:   "H+01:15",
		1500: "H+25:00",
		-5:   "-H+00:05",
	}
	for in, want := range tests {
		if got := FormatRelative(in); got != want {
			t.Errorf("FormatRelative(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestHospitalDayLabel(t *testing.T) {
	if got, ok := HospitalDayLabel(0); !ok || got != "HospitalDay1 00:00" {
		t.Errorf("HospitalDayLabel(0) = %q, %v", got, ok)
	}
	if got, ok := HospitalDayLabel(1500); !ok || got != "HospitalDay2 01:00" {
		t.Errorf("HospitalDayLabel(1500) = %q, %v", got, ok)
	}
	if _, ok := HospitalDayLabel(-1); ok {
		t.Error("negative offsets have no hospital day")
	}
}

func TestClip(t *testing.T) {
	rows := []int{1, 2, 3}
	two, zero, neg := 2, 0, -1

	if got, cut := Clip(rows, nil); len(got) != 3 || cut {
		t.Errorf("nil cap: %v %v", got, cut)
	}
	if got, cut := Clip(rows, &neg); len(got) != 3 || cut {
		t.Errorf("negative cap: %v %v", got, cut)
	}
	if got, cut := Clip(rows, &two); len(got) != 2 || got[1] != 2 || !cut {
		t.Errorf("cap 2: %v %v", got, cut)
	}
	if got, cut := Clip(rows, &zero); len(got) != 0 || !cut {
		t.Errorf("cap 0: %v %v", got, cut)
	}
	three := 3
	if _, cut := Clip(rows, &three); cut {
		t.Error("cap equal to length is not a truncation")
	}
}

func TestEntry_MarshalJSON(t *testing.T) {
	id := int64(5)
	typ := "admit"
	rel := int64(-3)
	e := Entry{
		EID:    "XFER#000001",
		Rel:    []RelTime{{Field: "t_rel_min", Minutes: &rel}, {Field: "t_other", Minutes: nil}},
		Record: record.Transfer{SubjectID: 1, TransferID: &id, EventType: &typ},
	}
	got, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := `{"transfer_id":5,"eventtype":"admit","careunit":null,"intime":null,"outtime":null,"eid":"XFER#000001","t_rel_min":-3,"t_other":null}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}

	if _, err := json.Marshal(Entry{EID: "X#000001", Record: []int{1}}); err == nil {
		t.Error("non-object records must fail to encode")
	}
}
