package alert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/alertspectre/internal/finding"
)

// Defaults applied to absent finding fields.
const (
	DefaultSeverity     = finding.SeverityMedium
	DefaultTitle        = "Unknown Issue"
	DefaultResourceID   = "unknown"
	DefaultResourceName = "Unknown"
	DefaultCheck        = "unknown"
	DefaultRegion       = "unknown"
	unknownLabel        = "Unknown"
)

// Normalizer turns findings into alerts.
type Normalizer struct {
	classifier *Classifier
	labels     map[Type]string
	now        func() time.Time
}

// NewNormalizer creates a normalizer. A nil classifier uses the default
// thresholds and a nil clock uses time.Now.
func NewNormalizer(classifier *Classifier, now func() time.Time) *Normalizer {
	if classifier == nil {
		classifier = NewClassifier(DefaultThresholds())
	}
	if now == nil {
		now = time.Now
	}
	labels := make(map[Type]string, len(DefaultLabels))
	for k, v := range DefaultLabels {
		labels[k] = v
	}
	return &Normalizer{classifier: classifier, labels: labels, now: now}
}

// Normalize converts one finding. It returns false when the finding is not alert-worthy.
func (n *Normalizer) Normalize(f finding.Finding, accountID, service string) (Alert, bool) {
	typ, ok := n.classifier.Classify(f)
	if !ok {
		return Alert{}, false
	}

	label, ok := n.labels[typ]
	if !ok {
		label = unknownLabel
	}

	ts := n.now()
	resourceID := orDefault(f.ResourceID, DefaultResourceID)

	return Alert{
		ID:             fmt.Sprintf("%s-%s-%s-%s", accountID, service, resourceID, unixSeconds(ts)),
		Timestamp:      ts,
		AccountID:      accountID,
		Service:        service,
		Region:         orDefault(f.Region, DefaultRegion),
		Type:           typ,
		TypeLabel:      label,
		Severity:       orDefault(f.Severity, DefaultSeverity),
		Title:          orDefault(f.Issue, DefaultTitle),
		Description:    Describe(f),
		ResourceID:     resourceID,
		ResourceName:   orDefault(f.ResourceName, DefaultResourceName),
		MonthlyCost:    f.Cost(),
		Recommendation: f.Advice(),
		Details:        f.Details,
		Check:          orDefault(f.Check, DefaultCheck),
	}, true
}

// Aggregate normalizes every finding of the tree in order and ranks the result.
func (n *Normalizer) Aggregate(tree finding.Tree) []Alert {
	alerts := []Alert{}
	tree.Walk(func(accountID, service string, f finding.Finding) {
		if a, ok := n.Normalize(f, accountID, service); ok {
			alerts = append(alerts, a)
		}
	})
	Rank(alerts)
	return alerts
}

// Describe builds the alert description from the issue and its details.
func Describe(f finding.Finding) string {
	if text, ok := f.Details.Text(); ok {
		return f.Issue + ". " + text
	}

	var parts []string
	if v, ok := f.Details.Number("total_cost"); ok {
		parts = append(parts, fmt.Sprintf("Cost: $%.2f", v))
	}
	if v, ok := f.Details.Number("usage_percentage"); ok {
		parts = append(parts, fmt.Sprintf("Usage: %.1f%%", v))
	}
	if raw, ok := f.Details.Field("severity_score"); ok {
		if v, ok := f.Details.Number("severity_score"); ok {
			parts = append(parts, "Severity: "+formatScore(v)+"/10")
		} else {
			parts = append(parts, fmt.Sprintf("Severity: %v/10", raw))
		}
	}
	if len(parts) == 0 {
		return f.Issue
	}
	return f.Issue + ". " + strings.Join(parts, ", ")
}

// formatScore prints the shortest form of v, keeping one decimal for whole
// numbers so 8 reads as 8.0.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func unixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
