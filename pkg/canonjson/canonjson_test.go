package canonjson

import (
	"strings"
	"testing"
)

type sample struct {
	Zeta  string         `json:"zeta"`
	Alpha int            `json:"alpha"`
	Inner map[string]any `json:"inner"`
	Nil   *string        `json:"nil"`
}

func TestMarshal_SortsKeysCompact(t *testing.T) {
	got, err := MarshalString(sample{
		Zeta:  "<b>&",
		Alpha: 3,
		Inner: map[string]any{"y": 1.5, "b": []int{2, 1}},
	})
	if err != nil {
		t.Fatalf("MarshalString() error: %v", err)
	}
	want := `{"alpha":3,"inner":{"b":[2,1],"y":1.5},"nil":null,"zeta":"<b>&"}`
	if got != want {
		t.Errorf("canonical mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestMarshal_PreservesNonASCII(t *testing.T) {
	got, err := MarshalString(map[string]string{"text": "doctor–patient"})
	if err != nil {
		t.Fatalf("MarshalString() error: %v", err)
	}
	if !strings.Contains(got, "doctor–patient") {
		t.Errorf("expected raw UTF-8 in output, got %s", got)
	}
}

func TestHash_StableAcrossKeyOrder(t *testing.T) {
	a, err := Hash(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	b, err := Hash(struct {
		B int `json:"b"`
		A int `json:"a"`
	}{B: 2, A: 1})
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if a != b {
		t.Errorf("expected equal hashes, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestIndent_TrailingNewline(t *testing.T) {
	b, err := Indent(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Indent() error: %v", err)
	}
	if string(b) != "{\n  \"a\": 1\n}\n" {
		t.Errorf("unexpected indent output %q", string(b))
	}
}
