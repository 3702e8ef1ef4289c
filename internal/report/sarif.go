package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/alertspectre/internal/alert"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	DefaultConfig    sarifDefaultLevel `json:"defaultConfiguration"`
}

type sarifDefaultLevel struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string         `json:"ruleId"`
	Level     string         `json:"level"`
	Message   sarifMessage   `json:"message"`
	Locations []sarifLoc     `json:"locations,omitempty"`
	Props     map[string]any `json:"properties,omitempty"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

// Generate writes one SARIF result per alert, with one rule per alert type.
func (r *SARIFReporter) Generate(data Data) error {
	results := make([]sarifResult, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		results = append(results, sarifResult{
			RuleID:  string(a.Type),
			Level:   sarifLevel(a.Severity),
			Message: sarifMessage{Text: a.Description},
			Locations: []sarifLoc{{
				PhysicalLocation: sarifPhysical{
					ArtifactLocation: sarifArtifact{
						URI: fmt.Sprintf("aws://%s/%s/%s/%s", a.AccountID, a.Region, a.Service, a.ResourceID),
					},
				},
			}},
			Props: map[string]any{
				"alertId":        a.ID,
				"check":          a.Check,
				"resourceName":   a.ResourceName,
				"monthlyCost":    a.MonthlyCost,
				"recommendation": a.Recommendation,
			},
		})
	}

	return WriteJSON(r.Writer, sarifReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    data.Tool,
					Version: data.Version,
					Rules:   sarifRules(),
				},
			},
			Results: results,
		}},
	})
}

func sarifLevel(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "error"
	case "medium":
		return "warning"
	default:
		return "note"
	}
}

var ruleLevels = map[alert.Type]string{
	alert.TypeCostSpike:       "warning",
	alert.TypeIdleResource:    "warning",
	alert.TypeSecurityHigh:    "error",
	alert.TypeBudgetThreshold: "warning",
	alert.TypeCostAnomaly:     "warning",
	alert.TypeCombined:        "error",
}

func sarifRules() []sarifRule {
	rules := make([]sarifRule, 0, len(alert.AllTypes))
	for _, t := range alert.AllTypes {
		rules = append(rules, sarifRule{
			ID:               string(t),
			ShortDescription: sarifMessage{Text: alert.DefaultLabels[t]},
			DefaultConfig:    sarifDefaultLevel{Level: ruleLevels[t]},
		})
	}
	return rules
}
