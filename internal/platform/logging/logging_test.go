package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONToStdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: "debug", Format: "json", Out: &buf})
	defer closer.Close()

	logger.Info().Int64("hadm_id", 10).Msg("admission started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "admission started" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry["hadm_id"] != float64(10) {
		t.Errorf("unexpected hadm_id %v", entry["hadm_id"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: "warn", Format: "json", Out: &buf})

	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", logger.GetLevel())
	}
}

func TestNew_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Dev: true, Out: &buf})
	logger.Info().Msg("hello")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "medbench.log")
	logger, closer := New(Options{Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1, Out: &buf})

	logger.Info().Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected message in log file, got %q", string(data))
	}
	if !strings.Contains(string(data), "ecs.version") {
		t.Errorf("expected ECS fields in log file, got %q", string(data))
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("expected message on stdout too, got %q", buf.String())
	}
}
