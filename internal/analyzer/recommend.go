package analyzer

import (
	"fmt"
	"strings"

	"github.com/ppiankov/alertspectre/internal/alert"
)

const (
	guardDutyDisabledTitle = "GuardDuty not enabled"

	guardDutyLine = "Enable GuardDuty for continuous threat detection (~$4.66/month)"
	budgetLine    = "Budget thresholds exceeded - review spending immediately"
)

// Recommend derives account-level recommendation lines from alert patterns.
func Recommend(alerts []alert.Alert, opts RecommendOptions) []string {
	lines := []string{}

	var highCost int
	var highCostTotal float64
	var security, idle int
	var guardDuty, budget bool
	for _, a := range alerts {
		if a.MonthlyCost > opts.HighCostThreshold {
			highCost++
			highCostTotal += a.MonthlyCost
		}
		switch a.Type {
		case alert.TypeSecurityHigh:
			security++
		case alert.TypeIdleResource:
			idle++
		case alert.TypeBudgetThreshold:
			budget = true
		}
		if strings.Contains(a.Title, guardDutyDisabledTitle) {
			guardDuty = true
		}
	}

	if highCost > 0 {
		lines = append(lines, fmt.Sprintf("Potential savings: $%.2f/month by addressing %d high-cost items", highCostTotal, highCost))
	}
	if security > 0 {
		lines = append(lines, fmt.Sprintf("Security: %d high-severity security issues require immediate attention", security))
	}
	if idle > 0 {
		lines = append(lines, fmt.Sprintf("Resource optimization: %d idle/unused resources can be removed", idle))
	}
	if guardDuty {
		lines = append(lines, guardDutyLine)
	}
	if budget {
		lines = append(lines, budgetLine)
	}
	return lines
}
