package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != "" || cfg.IdleDays != 0 || cfg.Thresholds.CostSpike != 0 {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".alertspectre.yaml", `profile: production
regions:
  - us-east-1
  - eu-west-1
idle_days: 14
stale_days: 60
findings_days: 7
format: json
log_format: json
timeout: 5m
thresholds:
  cost_spike: 250
  high_cost: 75.5
  budget_usage_percent: 90
  min_anomaly_impact: 20
exclude:
  resource_ids:
    - i-0abc123
  tags:
    - "Environment=production"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != "production" {
		t.Fatalf("expected profile production, got %q", cfg.Profile)
	}
	if len(cfg.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(cfg.Regions))
	}
	if cfg.IdleDays != 14 || cfg.StaleDays != 60 || cfg.FindingsDays != 7 {
		t.Fatalf("unexpected day settings: %+v", cfg)
	}
	if cfg.Format != "json" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected formats %q %q", cfg.Format, cfg.LogFormat)
	}
	want := Thresholds{CostSpike: 250, HighCost: 75.5, BudgetUsagePercent: 90, MinAnomalyImpact: 20}
	if cfg.Thresholds != want {
		t.Fatalf("expected thresholds %+v, got %+v", want, cfg.Thresholds)
	}
	if len(cfg.Exclude.ResourceIDs) != 1 || len(cfg.Exclude.Tags) != 1 {
		t.Fatalf("unexpected exclude block %+v", cfg.Exclude)
	}
}

func TestLoad_YAMLPriority(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".alertspectre.yaml", `profile: from-yaml`)
	writeConfig(t, dir, ".alertspectre.yml", `profile: from-yml`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != "from-yaml" {
		t.Fatalf("expected profile from-yaml (priority), got %q", cfg.Profile)
	}
}

func TestLoad_YMLExtension(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".alertspectre.yml", "profile: staging\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != "staging" {
		t.Fatalf("expected profile staging, got %q", cfg.Profile)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".alertspectre.yaml", `[invalid yaml content`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestExclude_ParseTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want map[string]string
	}{
		{"empty", nil, nil},
		{"key=value", []string{"Environment=production"}, map[string]string{"Environment": "production"}},
		{"key-only", []string{"temporary"}, map[string]string{"temporary": ""}},
		{"mixed", []string{"Env=prod", "alertspectre:ignore"}, map[string]string{"Env": "prod", "alertspectre:ignore": ""}},
		{"empty-value", []string{"Key="}, map[string]string{"Key": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exclude{Tags: tt.tags}.ParseTags()
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entries, got %d: %v", len(tt.want), len(got), got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("key %q: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestConfig_TimeoutDuration(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		wantSec float64
	}{
		{"empty", "", 0},
		{"5m", "5m", 300},
		{"invalid", "notaduration", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Config{Timeout: tt.timeout}.TimeoutDuration().Seconds()
			if got != tt.wantSec {
				t.Fatalf("expected %f seconds, got %f", tt.wantSec, got)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero", Config{}, false},
		{"valid", Config{Timeout: "30s", LogFormat: "JSON", Thresholds: Thresholds{CostSpike: 100}}, false},
		{"bad timeout", Config{Timeout: "soon"}, true},
		{"zero timeout", Config{Timeout: "0s"}, true},
		{"bad log format", Config{LogFormat: "xml"}, true},
		{"negative threshold", Config{Thresholds: Thresholds{HighCost: -1}}, true},
		{"negative days", Config{FindingsDays: -7}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
