package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterWritesJSONOutsideLocal(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger, err := NewWithWriter("production", "info", &out)
	if err != nil {
		t.Fatalf("NewWithWriter returned error: %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("provider", "google").Msg("translated")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", out.String(), err)
	}
	if entry["service"] != "voxlate" || entry["provider"] != "google" || entry["message"] != "translated" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewWithWriterRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter("local", "loud", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
