package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
)

type jsonEnvelope struct {
	Schema string `json:"$schema"`
	Data
}

// Generate writes the full report as indented JSON.
func (r *JSONReporter) Generate(data Data) error {
	if data.Alerts == nil {
		data.Alerts = []alert.Alert{}
	}
	if data.Recommendations == nil {
		data.Recommendations = []string{}
	}
	return WriteJSON(r.Writer, jsonEnvelope{Schema: "spectre/v1", Data: data})
}

type hubAlert struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Service     string  `json:"service"`
	Region      string  `json:"region"`
	Resource    string  `json:"resource"`
	Title       string  `json:"title"`
	MonthlyCost float64 `json:"monthly_cost"`
}

type hubEnvelope struct {
	Schema      string         `json:"$schema"`
	Tool        string         `json:"tool"`
	Version     string         `json:"version"`
	Timestamp   time.Time      `json:"timestamp"`
	Target      Target         `json:"target"`
	AlertCount  int            `json:"alert_count"`
	CostImpact  float64        `json:"monthly_cost_impact"`
	BySeverity  map[string]int `json:"by_severity"`
	Alerts      []hubAlert     `json:"alerts"`
	ErrorsCount int            `json:"errors_count"`
}

// Generate writes a flattened alert list with totals.
func (r *SpectreHubReporter) Generate(data Data) error {
	alerts := make([]hubAlert, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		alerts = append(alerts, hubAlert{
			ID:          a.ID,
			Type:        string(a.Type),
			Severity:    a.Severity,
			Service:     a.Service,
			Region:      a.Region,
			Resource:    a.ResourceID,
			Title:       a.Title,
			MonthlyCost: a.MonthlyCost,
		})
	}
	return WriteJSON(r.Writer, hubEnvelope{
		Schema:      "spectrehub/v1",
		Tool:        data.Tool,
		Version:     data.Version,
		Timestamp:   data.Timestamp,
		Target:      data.Target,
		AlertCount:  data.Summary.TotalAlerts,
		CostImpact:  data.Summary.TotalMonthlyCostImpact,
		BySeverity:  data.Summary.BySeverity,
		Alerts:      alerts,
		ErrorsCount: len(data.Errors),
	})
}

// WriteJSON encodes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON report: %w", err)
	}
	return nil
}
