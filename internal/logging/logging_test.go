package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true, "JSON")
	logger.Debug("scanning", "region", "us-east-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["region"] != "us-east-1" || entry["level"] != "DEBUG" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_TextDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, "")
	logger.Debug("hidden")
	logger.Info("shown", "count", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected text output %q", out)
	}
}

func TestNewServer_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewServer(&buf, false, "json")
	logger.Debug().Msg("hidden")
	logger.Info().Str("addr", ":5000").Msg("starting server")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if entry["addr"] != ":5000" || entry["level"] != "info" || entry["time"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewServer_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewServer(&buf, true, "text")
	logger.Debug().Str("path", "/health").Msg("request")

	out := buf.String()
	if !strings.Contains(out, "request") || !strings.Contains(out, "path=/health") {
		t.Fatalf("unexpected console output %q", out)
	}
}
