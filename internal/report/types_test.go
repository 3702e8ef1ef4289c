package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/finding"
)

func sampleAlerts() []alert.Alert {
	ts := time.Date(2026, 2, 24, 11, 0, 0, 0, time.UTC)
	return []alert.Alert{
		{
			ID:           "111111111111-Combined-i-abc123-1771930800.000000",
			Timestamp:    ts,
			AccountID:    "111111111111",
			Service:      "Combined",
			Region:       "us-east-1",
			Type:         alert.TypeCombined,
			TypeLabel:    "Combined Cost & Security",
			Severity:     "critical",
			Title:        "Resource is both costly and has security issues: i-abc123",
			Description:  "Resource is both costly and has security issues: i-abc123",
			ResourceID:   "i-abc123",
			ResourceName: "web-server",
			MonthlyCost:  50,
			Details:      finding.FieldDetails(map[string]any{"cost_issue": "Idle instance"}),
			Check:        "cost_security_combined",
		},
		{
			ID:          "111111111111-eip-eipalloc-1-1771930800.000000",
			Timestamp:   ts,
			AccountID:   "111111111111",
			Service:     "eip",
			Region:      "us-east-1",
			Type:        alert.TypeIdleResource,
			TypeLabel:   "Idle/Unused Resource",
			Severity:    "low",
			Title:       "Unassociated Elastic IP",
			ResourceID:  "eipalloc-1",
			MonthlyCost: 3.6,
			Check:       "unattached_eips",
		},
	}
}

func sampleData() Data {
	alerts := sampleAlerts()
	return Data{
		Tool:      "alertspectre",
		Version:   "0.1.0",
		Timestamp: time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC),
		Target: Target{
			Type:      "aws-account",
			URIHash:   "sha256:abc123",
			AccountID: "111111111111",
		},
		Config: ReportConfig{
			Regions:        []string{"us-east-1"},
			MinMonthlyCost: 1.0,
		},
		Alerts:          alerts,
		Summary:         analyzer.Summarize(alerts),
		Recommendations: []string{"Resource optimization: 1 idle/unused resources can be removed"},
	}
}

func TestData_JSON(t *testing.T) {
	b, err := json.Marshal(sampleData())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Data
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Tool != "alertspectre" {
		t.Fatalf("expected tool alertspectre, got %s", decoded.Tool)
	}
	if len(decoded.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(decoded.Alerts))
	}
	if decoded.Summary.TotalMonthlyCostImpact != 53.6 {
		t.Fatalf("expected cost impact 53.6, got %f", decoded.Summary.TotalMonthlyCostImpact)
	}
}

func TestNew(t *testing.T) {
	for _, format := range Formats {
		if _, ok := New(format, &bytes.Buffer{}); !ok {
			t.Fatalf("expected a reporter for %s", format)
		}
	}
	if _, ok := New("xml", &bytes.Buffer{}); ok {
		t.Fatal("expected no reporter for xml")
	}
}

func TestTextReporter_Generate(t *testing.T) {
	var buf bytes.Buffer
	r := &TextReporter{Writer: &buf}

	data := sampleData()
	data.Errors = []string{"us-east-1/guardduty: access denied"}
	if err := r.Generate(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"alertspectre",
		"Account: 111111111111",
		"[CRITICAL]",
		"i-abc123 (web-server)",
		"$50.00/mo",
		"Summary",
		"Monthly cost impact:  $53.60",
		"critical=1, low=1",
		"Recommendations:",
		"Errors (1):",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in text output:\n%s", want, output)
		}
	}
}

func TestTextReporter_NoAlerts(t *testing.T) {
	var buf bytes.Buffer
	r := &TextReporter{Writer: &buf}

	data := sampleData()
	data.Alerts = nil
	data.Summary = analyzer.Summarize(nil)
	data.Recommendations = nil

	if err := r.Generate(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "No alerts found") {
		t.Fatal("expected 'No alerts found' message")
	}
	if strings.Contains(output, "Recommendations") {
		t.Fatal("expected no recommendations section")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextReporter_WriteError(t *testing.T) {
	r := &TextReporter{Writer: failingWriter{}}
	if err := r.Generate(sampleData()); err == nil {
		t.Fatal("expected write error")
	}
}

func TestWriteFeedText(t *testing.T) {
	var buf bytes.Buffer
	builder := analyzer.NewFeedBuilder(func() time.Time { return time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC) }, analyzer.DefaultRecommendOptions())
	daily := builder.Daily(sampleAlerts())

	if err := WriteFeedText(&buf, daily.Feed, daily.FeedDate, daily.Recommendations); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Alert feed (daily) for 2026-02-24") {
		t.Fatalf("expected feed header, got:\n%s", output)
	}
	if !strings.Contains(output, "Total alerts:         2") {
		t.Fatalf("expected both alerts in the daily window, got:\n%s", output)
	}
}

func TestWriteSummaryText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaryText(&buf, analyzer.Summarize(sampleAlerts())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Combined=1, eip=1") {
		t.Fatalf("expected service counts, got:\n%s", buf.String())
	}
}

func TestJSONReporter_Generate(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var envelope map[string]any
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if schema, ok := envelope["$schema"].(string); !ok || schema != "spectre/v1" {
		t.Fatalf("expected $schema spectre/v1, got %v", envelope["$schema"])
	}
	if envelope["tool"] != "alertspectre" {
		t.Fatalf("expected tool alertspectre, got %v", envelope["tool"])
	}
	alerts, ok := envelope["alerts"].([]any)
	if !ok || len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %v", envelope["alerts"])
	}
	first := alerts[0].(map[string]any)
	if first["alert_type_label"] != "Combined Cost & Security" {
		t.Fatalf("unexpected label %v", first["alert_type_label"])
	}
}

func TestJSONReporter_EmptyListsNotNull(t *testing.T) {
	var buf bytes.Buffer
	data := sampleData()
	data.Alerts = nil
	data.Recommendations = nil

	if err := (&JSONReporter{Writer: &buf}).Generate(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"alerts": []`) || !strings.Contains(buf.String(), `"recommendations": []`) {
		t.Fatalf("expected empty arrays, got %s", buf.String())
	}
}

func TestSpectreHubReporter_Generate(t *testing.T) {
	var buf bytes.Buffer
	r := &SpectreHubReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var envelope map[string]any
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if schema, ok := envelope["$schema"].(string); !ok || schema != "spectrehub/v1" {
		t.Fatalf("expected $schema spectrehub/v1, got %v", envelope["$schema"])
	}
	if envelope["alert_count"] != float64(2) {
		t.Fatalf("expected alert_count 2, got %v", envelope["alert_count"])
	}
}

func TestSARIFReporter_Generate(t *testing.T) {
	var buf bytes.Buffer
	r := &SARIFReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sarif map[string]any
	if err := json.Unmarshal(buf.Bytes(), &sarif); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sarif["version"] != "2.1.0" {
		t.Fatalf("expected SARIF version 2.1.0, got %v", sarif["version"])
	}

	runs, ok := sarif["runs"].([]any)
	if !ok || len(runs) != 1 {
		t.Fatal("expected 1 SARIF run")
	}
	run := runs[0].(map[string]any)
	rules := run["tool"].(map[string]any)["driver"].(map[string]any)["rules"].([]any)
	if len(rules) != len(alert.AllTypes) {
		t.Fatalf("expected %d rules, got %d", len(alert.AllTypes), len(rules))
	}

	results, ok := run["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatal("expected 2 SARIF results")
	}
	result := results[0].(map[string]any)
	if result["ruleId"] != "combined" || result["level"] != "error" {
		t.Fatalf("expected combined/error, got %v/%v", result["ruleId"], result["level"])
	}
	if results[1].(map[string]any)["level"] != "note" {
		t.Fatalf("expected low severity as note, got %v", results[1].(map[string]any)["level"])
	}
}

func TestSARIFLevel(t *testing.T) {
	tests := map[string]string{
		"CRITICAL": "error",
		"high":     "error",
		"medium":   "warning",
		"low":      "note",
		"":         "note",
	}
	for severity, want := range tests {
		if got := sarifLevel(severity); got != want {
			t.Errorf("sarifLevel(%q) = %s, want %s", severity, got, want)
		}
	}
}
