package alert

import (
	"strings"

	"github.com/ppiankov/alertspectre/internal/finding"
)

// DefaultCostSpikeThreshold is the monthly cost above which a cost finding is a spike.
const DefaultCostSpikeThreshold = 100.0

var idlePatterns = []string{"idle", "unused", "stopped", "empty", "orphan", "unattached"}

// Thresholds tunes the classifier.
type Thresholds struct {
	CostSpike float64
}

// DefaultThresholds returns the stock classifier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{CostSpike: DefaultCostSpikeThreshold}
}

// Subject is the lowercase view of a finding that rules match against.
type Subject struct {
	Check    string
	Type     string
	Severity string
	Finding  finding.Finding
}

// Rule assigns Type to findings it matches.
type Rule struct {
	Name  string
	Type  Type
	Match func(Subject) bool
}

// Classifier evaluates rules in order; the first match decides the alert type.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the stock rule list.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{rules: []Rule{
		{
			Name:  "combined",
			Type:  TypeCombined,
			Match: func(s Subject) bool { return s.Type == string(finding.TypeCombined) },
		},
		{
			Name: "high-severity-security",
			Type: TypeSecurityHigh,
			Match: func(s Subject) bool {
				return s.Type == string(finding.TypeSecurity) &&
					(s.Severity == finding.SeverityHigh || s.Severity == finding.SeverityCritical)
			},
		},
		{
			Name:  "anomaly",
			Type:  TypeCostAnomaly,
			Match: func(s Subject) bool { return strings.Contains(s.Check, "anomaly") },
		},
		{
			Name: "budget-threshold",
			Type: TypeBudgetThreshold,
			Match: func(s Subject) bool {
				return strings.Contains(s.Check, "budget") && strings.Contains(s.Check, "threshold")
			},
		},
		{
			Name: "idle",
			Type: TypeIdleResource,
			Match: func(s Subject) bool {
				for _, p := range idlePatterns {
					if strings.Contains(s.Check, p) {
						return true
					}
				}
				return false
			},
		},
		{
			Name: "cost-spike",
			Type: TypeCostSpike,
			Match: func(s Subject) bool {
				c := s.Finding.MonthlyCost
				return s.Type == string(finding.TypeCost) && c != nil && *c > th.CostSpike
			},
		},
	}}
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the alert type for f, or false when no rule matches.
func (c *Classifier) Classify(f finding.Finding) (Type, bool) {
	s := Subject{
		Check:    strings.ToLower(f.Check),
		Type:     strings.ToLower(string(f.Type)),
		Severity: strings.ToLower(f.Severity),
		Finding:  f,
	}
	for _, r := range c.rules {
		if r.Match(s) {
			return r.Type, true
		}
	}
	return "", false
}
