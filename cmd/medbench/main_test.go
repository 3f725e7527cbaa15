package main

import (
	"testing"

	"github.com/leozzy13/Health-Benchmark/internal/config"
)

func parsed(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cmd := generatePatientCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error: %v", args, err)
	}
	cfg := &config.Config{
		ModelName:            "default-model",
		ModelProvider:        "openai",
		ModelRetryLimit:      2,
		ModelMaxOutputTokens: 12000,
		RequireDischargeNote: true,
		Truncation:           config.DefaultRuleset(),
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		t.Fatalf("applyOverrides() error: %v", err)
	}
	return cfg
}

func TestApplyOverrides_Unset(t *testing.T) {
	cfg := parsed(t)
	if cfg.ModelName != "default-model" || cfg.ModelRetryLimit != 2 || cfg.ModelSeed != nil {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
	if !cfg.RequireDischargeNote {
		t.Error("RequireDischargeNote = false, want true")
	}
	if got, want := *cfg.Truncation.Cap("labs"), *config.DefaultRuleset().Cap("labs"); got != want {
		t.Errorf("labs cap = %d, want default %d", got, want)
	}
}

func TestApplyOverrides_Flags(t *testing.T) {
	cfg := parsed(t,
		"--model", "gemini-2.5-pro", "--provider", "gemini",
		"--retry-limit", "0", "--max-output-tokens", "500", "--seed", "0",
		"--row-cap-labs", "10", "--row-cap-emar", "0",
		"--proximal-padding-hours", "6", "--no-require-discharge-note",
	)
	if cfg.ModelName != "gemini-2.5-pro" || cfg.ModelProvider != "gemini" {
		t.Errorf("model = %s/%s", cfg.ModelProvider, cfg.ModelName)
	}
	if cfg.ModelRetryLimit != 0 {
		t.Errorf("ModelRetryLimit = %d, want explicit 0", cfg.ModelRetryLimit)
	}
	if cfg.ModelMaxOutputTokens != 500 {
		t.Errorf("ModelMaxOutputTokens = %d, want 500", cfg.ModelMaxOutputTokens)
	}
	if cfg.ModelSeed == nil || *cfg.ModelSeed != 0 {
		t.Errorf("ModelSeed = %v, want explicit 0", cfg.ModelSeed)
	}
	if got := *cfg.Truncation.Cap("labs"); got != 10 {
		t.Errorf("labs cap = %d, want 10", got)
	}
	if got := *cfg.Truncation.Cap("emar"); got != 0 {
		t.Errorf("emar cap = %d, want 0", got)
	}
	if cfg.ProximalPaddingHours != 6 {
		t.Errorf("ProximalPaddingHours = %d, want 6", cfg.ProximalPaddingHours)
	}
	if cfg.RequireDischargeNote {
		t.Error("RequireDischargeNote = true, want false")
	}
}

func TestApplyOverrides_NegativeRowCap(t *testing.T) {
	cmd := generatePatientCmd()
	if err := cmd.ParseFlags([]string{"--row-cap-radiology", "-1"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if err := applyOverrides(cmd, &config.Config{}); err == nil {
		t.Error("applyOverrides() accepted a negative row cap")
	}
}

func TestPatientRequest(t *testing.T) {
	cmd := generatePatientCmd()
	if err := cmd.ParseFlags([]string{"--subject-id", "100", "--max-admissions", "3"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	req, err := patientRequest(cmd)
	if err != nil {
		t.Fatalf("patientRequest() error: %v", err)
	}
	if req.SubjectID != 100 || req.MaxAdmissions != 3 {
		t.Errorf("req = %+v", req)
	}
	if req.HadmID != nil || req.OnlyWithDischarge != nil {
		t.Errorf("unset filters leaked into request: %+v", req)
	}

	cmd = generatePatientCmd()
	if err := cmd.ParseFlags([]string{"--subject-id", "100", "--hadm-id", "0", "--include-admissions-without-discharge"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	req, err = patientRequest(cmd)
	if err != nil {
		t.Fatalf("patientRequest() error: %v", err)
	}
	if req.HadmID == nil || *req.HadmID != 0 {
		t.Errorf("HadmID = %v, want explicit 0", req.HadmID)
	}
	if req.OnlyWithDischarge == nil || *req.OnlyWithDischarge {
		t.Errorf("OnlyWithDischarge = %v, want false", req.OnlyWithDischarge)
	}
}

func TestPatientRequest_NegativeCap(t *testing.T) {
	cmd := generatePatientCmd()
	if err := cmd.ParseFlags([]string{"--subject-id", "1", "--max-admissions", "-2"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if _, err := patientRequest(cmd); err == nil {
		t.Error("patientRequest() accepted a negative cap")
	}
}
