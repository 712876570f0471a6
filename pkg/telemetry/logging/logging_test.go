package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "info", "json")

	logger.Info("hello", "provider", "openai")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["provider"] != "openai" {
		t.Errorf("entry = %v, want msg and provider attrs", entry)
	}
}

func TestSetupWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "debug", "text")

	logger.Debug("probe ok")
	if !strings.Contains(buf.String(), "probe ok") {
		t.Errorf("output = %q, want debug line in text format", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "error", "json")

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line emitted at error level: %q", buf.String())
	}
	logger.Error("kept")
	if buf.Len() == 0 {
		t.Error("error line should be emitted")
	}
}

func TestParseLevelFallback(t *testing.T) {
	if got := parseLevel("bogus"); got != slog.LevelInfo {
		t.Errorf("parseLevel(bogus) = %v, want info", got)
	}
	if got := parseLevel("warning"); got != slog.LevelWarn {
		t.Errorf("parseLevel(warning) = %v, want warn", got)
	}
}
