package alert

import (
	"strings"
	"time"

	"github.com/ppiankov/alertspectre/internal/finding"
)

// Type is the category an alert is classified into.
type Type string

const (
	TypeCostSpike       Type = "cost_spike"
	TypeIdleResource    Type = "idle_resource"
	TypeSecurityHigh    Type = "security_high"
	TypeBudgetThreshold Type = "budget_threshold"
	TypeCostAnomaly     Type = "cost_anomaly"
	TypeCombined        Type = "combined"
)

// AllTypes lists every alert type in taxonomy order.
var AllTypes = []Type{
	TypeCostSpike,
	TypeIdleResource,
	TypeSecurityHigh,
	TypeBudgetThreshold,
	TypeCostAnomaly,
	TypeCombined,
}

// DefaultLabels maps alert types to display names.
var DefaultLabels = map[Type]string{
	TypeCostSpike:       "Cost Spike",
	TypeIdleResource:    "Idle/Unused Resource",
	TypeSecurityHigh:    "High Severity Security",
	TypeBudgetThreshold: "Budget Threshold Exceeded",
	TypeCostAnomaly:     "Cost Anomaly Detected",
	TypeCombined:        "Combined Cost & Security",
}

// ValidType reports whether s names a known alert type.
func ValidType(s string) bool {
	_, ok := DefaultLabels[Type(s)]
	return ok
}

// Alert is the normalized, prioritized form of a finding.
type Alert struct {
	ID             string          `json:"alert_id"`
	Timestamp      time.Time       `json:"timestamp"`
	AccountID      string          `json:"account_id"`
	Service        string          `json:"service"`
	Region         string          `json:"region"`
	Type           Type            `json:"alert_type"`
	TypeLabel      string          `json:"alert_type_label"`
	Severity       string          `json:"severity"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	ResourceID     string          `json:"resource_id"`
	ResourceName   string          `json:"resource_name"`
	MonthlyCost    float64         `json:"monthly_cost"`
	Recommendation string          `json:"recommendation"`
	Details        finding.Details `json:"details"`
	Check          string          `json:"check"`
}

var severityRanks = map[string]int{
	finding.SeverityCritical: 5,
	finding.SeverityHigh:     4,
	finding.SeverityMedium:   3,
	finding.SeverityLow:      2,
	finding.SeverityInfo:     1,
}

// SeverityRank maps a severity to its priority, case-insensitively. Unknown values rank 0.
func SeverityRank(severity string) int {
	return severityRanks[strings.ToLower(severity)]
}
