package analyzer

import (
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
)

const unknownKey = "unknown"

// Filter applies each set option in turn. Days keeps alerts generated at or
// after now minus Days*24h; alerts without a timestamp are skipped by that check.
func Filter(alerts []alert.Alert, opts FilterOptions, now time.Time) []alert.Alert {
	filtered := make([]alert.Alert, 0, len(alerts))
	minRank := alert.SeverityRank(opts.SeverityMin)
	var cutoff time.Time
	if opts.Days > 0 {
		cutoff = now.Add(-time.Duration(opts.Days) * 24 * time.Hour)
	}

	for _, a := range alerts {
		if len(opts.Types) > 0 && !hasType(opts.Types, a.Type) {
			continue
		}
		if opts.SeverityMin != "" && alert.SeverityRank(a.Severity) < minRank {
			continue
		}
		if opts.Days > 0 && (a.Timestamp.IsZero() || a.Timestamp.Before(cutoff)) {
			continue
		}
		if a.MonthlyCost < opts.MinMonthlyCost {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

func hasType(types []alert.Type, t alert.Type) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// Summarize computes counts by type, severity and service, the total monthly
// cost impact and the first TopAlertsLimit alerts in input order.
func Summarize(alerts []alert.Alert) Summary {
	summary := Summary{
		TotalAlerts: len(alerts),
		ByType:      make(map[string]int),
		BySeverity:  make(map[string]int),
		ByService:   make(map[string]int),
		TopAlerts:   make([]alert.Alert, 0, TopAlertsLimit),
	}

	for _, a := range alerts {
		summary.ByType[keyOrUnknown(string(a.Type))]++
		summary.BySeverity[keyOrUnknown(a.Severity)]++
		summary.ByService[keyOrUnknown(a.Service)]++
		summary.TotalMonthlyCostImpact += a.MonthlyCost
	}
	summary.TopAlerts = append(summary.TopAlerts, alert.Top(alerts, TopAlertsLimit)...)

	return summary
}

func keyOrUnknown(s string) string {
	if s == "" {
		return unknownKey
	}
	return s
}
