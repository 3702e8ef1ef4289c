package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/alertspectre/internal/config"
)

func TestWriteIfNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.yaml")

	if err := writeIfNotExists(path, "content", false); err != nil {
		t.Fatalf("writeIfNotExists: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q, want %q", string(data), "content")
	}
}

func TestWriteIfNotExistsAlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	_ = os.WriteFile(path, []byte("original"), 0o644)

	if err := writeIfNotExists(path, "new content", false); err == nil {
		t.Fatal("expected error for existing file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Errorf("content = %q, want %q (preserved)", string(data), "original")
	}

	if err := writeIfNotExists(path, "overwritten", true); err != nil {
		t.Fatalf("writeIfNotExists --force: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "overwritten" {
		t.Errorf("content = %q, want %q (overwritten)", string(data), "overwritten")
	}
}

func TestWriteInitFiles(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if err := writeInitFiles(&out, dir, false); err != nil {
		t.Fatalf("writeInitFiles: %v", err)
	}
	if !strings.Contains(out.String(), "alertspectre scan") {
		t.Errorf("missing next steps in %q", out.String())
	}

	loaded, err := config.Load(dir)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if loaded.IdleDays != 7 || loaded.Thresholds.CostSpike != 100 || loaded.TimeoutDuration().Minutes() != 10 {
		t.Errorf("unexpected sample config %+v", loaded)
	}

	data, err := os.ReadFile(filepath.Join(dir, initPolicyPath))
	if err != nil {
		t.Fatalf("read policy: %v", err)
	}
	var policy struct {
		Statement []struct {
			Action []string `json:"Action"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal(data, &policy); err != nil {
		t.Fatalf("policy is not valid JSON: %v", err)
	}
	actions := map[string]bool{}
	for _, s := range policy.Statement {
		for _, a := range s.Action {
			actions[a] = true
		}
	}
	for _, want := range []string{"guardduty:ListFindings", "ce:GetAnomalies", "budgets:ViewBudget", "sts:GetCallerIdentity"} {
		if !actions[want] {
			t.Errorf("policy missing %s", want)
		}
	}

	if err := writeInitFiles(&out, dir, false); err == nil {
		t.Fatal("expected error when files exist without --force")
	}
}
