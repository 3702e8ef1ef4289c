package report

import (
	"io"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
)

// Reporter renders report data to an output.
type Reporter interface {
	Generate(data Data) error
}

// Target identifies what was audited without exposing the profile name.
type Target struct {
	Type      string `json:"type"`
	URIHash   string `json:"uri_hash"`
	AccountID string `json:"account_id,omitempty"`
}

// ReportConfig records the options the alerts were produced with.
type ReportConfig struct {
	Regions        []string `json:"regions"`
	Services       []string `json:"services,omitempty"`
	AlertTypes     []string `json:"alert_types,omitempty"`
	SeverityMin    string   `json:"severity_min,omitempty"`
	Days           int      `json:"days,omitempty"`
	MinMonthlyCost float64  `json:"min_monthly_cost"`
}

// Data is everything a reporter needs.
type Data struct {
	Tool            string           `json:"tool"`
	Version         string           `json:"version"`
	Timestamp       time.Time        `json:"timestamp"`
	Target          Target           `json:"target"`
	Config          ReportConfig     `json:"config"`
	Alerts          []alert.Alert    `json:"alerts"`
	Summary         analyzer.Summary `json:"summary"`
	Recommendations []string         `json:"recommendations"`
	Errors          []string         `json:"errors,omitempty"`
}

// TextReporter writes a human-readable report.
type TextReporter struct {
	Writer io.Writer
}

// JSONReporter writes the spectre/v1 JSON envelope.
type JSONReporter struct {
	Writer io.Writer
}

// SARIFReporter writes SARIF v2.1.0 for code scanning integrations.
type SARIFReporter struct {
	Writer io.Writer
}

// SpectreHubReporter writes the compact spectrehub/v1 envelope consumed by aggregators.
type SpectreHubReporter struct {
	Writer io.Writer
}

// New returns the reporter for format.
func New(format string, w io.Writer) (Reporter, bool) {
	switch format {
	case FormatText:
		return &TextReporter{Writer: w}, true
	case FormatJSON:
		return &JSONReporter{Writer: w}, true
	case FormatSARIF:
		return &SARIFReporter{Writer: w}, true
	case FormatSpectreHub:
		return &SpectreHubReporter{Writer: w}, true
	default:
		return nil, false
	}
}

// Output formats.
const (
	FormatText       = "text"
	FormatJSON       = "json"
	FormatSARIF      = "sarif"
	FormatSpectreHub = "spectrehub"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatSARIF, FormatSpectreHub}
