package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", FormatJSON, &buf)

	logger.Info("dropped")
	logger.WithField("field", "value").Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "kept" || entry["field"] != "value" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := New("chatty", FormatText, nil)
	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}

func TestComponent_NilLogger(t *testing.T) {
	entry := Component(nil, "options")
	if entry.Data["component"] != "options" {
		t.Fatalf("expected component field, got %#v", entry.Data)
	}
}
