package validate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func evidence() Evidence {
	return Evidence{
		Known: map[string]bool{
			"PT#000001": true, "ADM#000001": true, "LAB#000001": true, "DS#000001": true, "RAD#000001": true,
		},
		PatientEID:   "PT#000001",
		AdmissionEID: "ADM#000001",
	}
}

func validDoc() map[string]any {
	return map[string]any{
		"conversation": []any{
			map[string]any{
				"turn_id": 1, "speaker": "ATTENDING", "relative_time": "H+00:10",
				"text": "Good morning.", "evidence_eids": []any{},
			},
			map[string]any{
				"turn_id": 2, "speaker": "PATIENT", "relative_time": "H+00:12",
				"text": "My chest hurts.", "evidence_eids": []any{"DS#000001", "Pt"},
			},
		},
		"end_of_admission_summary": map[string]any{
			"relative_discharge_time": "H+72:00",
			"one_paragraph_summary":   "Admitted with chest pain.",
			"problem_list": []any{
				map[string]any{"problem": "Chest pain", "status_at_discharge": "resolved", "supporting_eids": []any{"DS#000001"}},
			},
			"key_tests_and_results": []any{
				map[string]any{"test": "Troponin", "result": "negative", "relative_time": "H+01:00", "supporting_eids": []any{"LAB#000001"}},
			},
			"treatments_and_meds": []any{},
			"disposition": map[string]any{
				"discharge_location": "HOME", "supporting_eids": []any{" admission "},
			},
		},
	}
}

func encode(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(b)
}

func TestValidate_Accepts(t *testing.T) {
	res := Validate(encode(t, validDoc()), evidence(), true)
	if res.Rejected {
		t.Fatalf("unexpected rejection: %v", res.Err())
	}
	if res.Err() != nil || len(res.Issues) != 0 {
		t.Errorf("unexpected issues: %+v", res.Issues)
	}
	r := res.Response
	if diff := cmp.Diff([]string{"DS#000001", "PT#000001"}, r.Conversation[1].EvidenceEIDs); diff != "" {
		t.Errorf("alias not normalized (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ADM#000001"}, r.Summary.Disposition.SupportingEIDs); diff != "" {
		t.Errorf("disposition alias not normalized (-want +got):\n%s", diff)
	}
	if r.Summary.TreatmentsAndMeds == nil {
		t.Error("empty lists must stay non-nil")
	}
	if r.Conversation[0].EvidenceEIDs == nil {
		t.Error("empty evidence must stay non-nil")
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	for _, text := range []string{"not json", "[1, 2]", `{"a":1} {"b":2}`, ""} {
		res := Validate(text, evidence(), true)
		if !res.Rejected || !IsKind(res.Err(), MalformedJSON) {
			t.Errorf("Validate(%q) = %+v, want MalformedJSON", text, res)
		}
	}
}

func TestCheckSchema_Violations(t *testing.T) {
	turn := func(d map[string]any, i int) map[string]any {
		return d["conversation"].([]any)[i].(map[string]any)
	}
	summary := func(d map[string]any) map[string]any {
		return d["end_of_admission_summary"].(map[string]any)
	}

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantMsg string
	}{
		{"extra top key", func(d map[string]any) { d["notes"] = "x"; delete(d, "conversation") }, `unexpected top-level keys: ["notes"]`},
		{"missing top key", func(d map[string]any) { delete(d, "end_of_admission_summary") }, "missing top-level keys"},
		{"empty conversation", func(d map[string]any) { d["conversation"] = []any{} }, "conversation must be a non-empty list"},
		{"turn starts at 2", func(d map[string]any) { turn(d, 0)["turn_id"] = 2 }, "conversation[1].turn_id must be sequential starting at 1 (expected 1)"},
		{"turn gap", func(d map[string]any) { turn(d, 1)["turn_id"] = 3 }, "conversation[2].turn_id must be sequential starting at 1 (expected 2)"},
		{"turn id string", func(d map[string]any) { turn(d, 0)["turn_id"] = "1" }, "conversation[1].turn_id must be an integer"},
		{"turn id float", func(d map[string]any) { turn(d, 0)["turn_id"] = 1.5 }, "conversation[1].turn_id must be an integer"},
		{"bad speaker", func(d map[string]any) { turn(d, 0)["speaker"] = "DOCTOR" }, "conversation[1].speaker invalid: DOCTOR"},
		{"extra turn key", func(d map[string]any) { turn(d, 1)["mood"] = "calm" }, "conversation[2] keys mismatch"},
		{"text not string", func(d map[string]any) { turn(d, 0)["text"] = 5 }, "conversation[1].text must be a string"},
		{"evidence not strings", func(d map[string]any) { turn(d, 0)["evidence_eids"] = []any{1} }, "conversation[1].evidence_eids must be a list of strings"},
		{"summary key missing", func(d map[string]any) { delete(summary(d), "disposition") }, "end_of_admission_summary keys mismatch"},
		{"problem keys", func(d map[string]any) {
			summary(d)["problem_list"] = []any{map[string]any{"problem": "x", "supporting_eids": []any{}}}
		}, "end_of_admission_summary.problem_list[1] keys mismatch"},
		{"test value type", func(d map[string]any) {
			summary(d)["key_tests_and_results"].([]any)[0].(map[string]any)["result"] = 4.2
		}, "end_of_admission_summary.key_tests_and_results[1].result must be a string"},
		{"treatments not list", func(d map[string]any) { summary(d)["treatments_and_meds"] = "none" }, "end_of_admission_summary.treatments_and_meds must be a list"},
		{"disposition keys", func(d map[string]any) {
			summary(d)["disposition"] = map[string]any{"discharge_location": "HOME"}
		}, "end_of_admission_summary.disposition keys mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoc()
			tt.mutate(d)
			res := Validate(encode(t, d), evidence(), true)
			if !res.Rejected {
				t.Fatal("expected rejection")
			}
			err := res.Err()
			if !IsKind(err, SchemaViolation) {
				t.Fatalf("expected SchemaViolation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_UnknownEvidence(t *testing.T) {
	d := validDoc()
	d["conversation"].([]any)[1].(map[string]any)["evidence_eids"] = []any{"LAB#999999"}
	d["end_of_admission_summary"].(map[string]any)["problem_list"].([]any)[0].(map[string]any)["supporting_eids"] = []any{"RX#000001"}
	text := encode(t, d)

	strict := Validate(text, evidence(), true)
	if !strict.Rejected || !IsKind(strict.Err(), EvidenceViolation) {
		t.Fatalf("expected EvidenceViolation, got %+v", strict)
	}
	want := "conversation[2] references unknown EID: LAB#999999; problem_list[1] references unknown EID: RX#000001"
	if got := strict.Err().Error(); got != want {
		t.Errorf("message = %q\nwant      %q", got, want)
	}

	lenient := Validate(text, evidence(), false)
	if lenient.Rejected || lenient.Response == nil {
		t.Fatalf("non-strict validation must accept, got %+v", lenient)
	}
	if len(lenient.Issues) != 2 || lenient.Issues[0].Kind != EvidenceViolation {
		t.Errorf("issues = %+v", lenient.Issues)
	}
}

func TestNormalizeAliases_CaseAndSpace(t *testing.T) {
	r := &Response{
		Conversation: []Turn{{EvidenceEIDs: []string{"PATIENT", " adm ", "Pt", "lab#000001"}}},
	}
	NormalizeAliases(r, evidence())
	want := []string{"PT#000001", "ADM#000001", "PT#000001", "lab#000001"}
	if diff := cmp.Diff(want, r.Conversation[0].EvidenceEIDs); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
