package aws

import (
	"context"
	"fmt"
	"strconv"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	budgettypes "github.com/aws/aws-sdk-go-v2/service/budgets/types"
	"github.com/ppiankov/alertspectre/internal/finding"
)

// BudgetsAPI is the minimal interface for AWS Budgets operations.
type BudgetsAPI interface {
	DescribeBudgets(ctx context.Context, input *budgets.DescribeBudgetsInput, opts ...func(*budgets.Options)) (*budgets.DescribeBudgetsOutput, error)
}

// BudgetScanner reports budgets that are close to or over their limit.
type BudgetScanner struct {
	client BudgetsAPI
}

// NewBudgetScanner creates an account-wide budgets scanner.
func NewBudgetScanner(client BudgetsAPI) *BudgetScanner {
	return &BudgetScanner{client: client}
}

// Service returns the findings tree key. Budgets share the cost explorer subtree.
func (s *BudgetScanner) Service() string {
	return ServiceCostExplorer
}

// Scan flags budgets whose actual spend exceeds BudgetUsagePercent of the limit
// or whose forecast exceeds the limit.
func (s *BudgetScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	var all []budgettypes.Budget
	var token *string
	for {
		out, err := s.client.DescribeBudgets(ctx, &budgets.DescribeBudgetsInput{
			AccountId: awssdk.String(cfg.AccountID),
			NextToken: token,
		})
		if err != nil {
			if accessDenied(err) {
				return &ScanResult{Findings: []finding.Finding{budgetAccessFinding(cfg)}}, nil
			}
			return nil, fmt.Errorf("describe budgets: %w", err)
		}
		all = append(all, out.Budgets...)
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	result := &ScanResult{ResourcesScanned: len(all)}
	if len(all) == 0 {
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:      cfg.AccountID,
			Service:        ServiceCostExplorer,
			Check:          CheckBudgetConfiguration,
			Type:           finding.TypeRecommendation,
			Severity:       finding.SeverityMedium,
			ResourceID:     "budgets",
			ResourceName:   "AWS Budgets",
			Region:         finding.RegionGlobal,
			Issue:          "No AWS Budgets configured",
			Details:        finding.TextDetails("Set up AWS Budgets to receive alerts when costs exceed thresholds"),
			Recommendation: "Configure AWS Budgets with appropriate thresholds and alerts",
		})
		return result, nil
	}

	for _, b := range all {
		if f, ok := budgetFinding(cfg, b); ok {
			result.Findings = append(result.Findings, f)
		}
	}
	return result, nil
}

func budgetFinding(cfg ScanConfig, b budgettypes.Budget) (finding.Finding, bool) {
	name := deref(b.BudgetName)
	limit := spendAmount(b.BudgetLimit)
	var actual, forecast float64
	if b.CalculatedSpend != nil {
		actual = spendAmount(b.CalculatedSpend.ActualSpend)
		forecast = spendAmount(b.CalculatedSpend.ForecastedSpend)
	}

	var usage, forecastPct float64
	if limit > 0 {
		usage = actual / limit * 100
		forecastPct = forecast / limit * 100
	}
	if usage <= cfg.BudgetUsagePercent && forecastPct <= 100 {
		return finding.Finding{}, false
	}

	severity := finding.SeverityMedium
	switch {
	case usage > 100:
		severity = finding.SeverityCritical
	case usage > 90:
		severity = finding.SeverityHigh
	}

	timeUnit := string(b.TimeUnit)
	if timeUnit == "" {
		timeUnit = string(budgettypes.TimeUnitMonthly)
	}

	return finding.Finding{
		AccountID:    cfg.AccountID,
		Service:      ServiceCostExplorer,
		Check:        CheckBudgetThreshold,
		Type:         finding.TypeCost,
		Severity:     severity,
		ResourceID:   name,
		ResourceName: name,
		Region:       finding.RegionGlobal,
		Issue:        "Budget threshold alert: " + name,
		Details: finding.FieldDetails(map[string]any{
			"budget_name":         name,
			"budget_limit":        round2(limit),
			"actual_spend":        round2(actual),
			"forecasted_spend":    round2(forecast),
			"usage_percentage":    round2(usage),
			"forecast_percentage": round2(forecastPct),
			"time_period":         timeUnit,
		}),
		Recommendation: fmt.Sprintf("Review spending for %s. Current: $%.2f / $%.2f (%.1f%%)", name, actual, limit, usage),
	}, true
}

func budgetAccessFinding(cfg ScanConfig) finding.Finding {
	return finding.Finding{
		AccountID:      cfg.AccountID,
		Service:        ServiceCostExplorer,
		Check:          CheckBudgetAccess,
		Type:           finding.TypeRecommendation,
		Severity:       finding.SeverityLow,
		ResourceID:     "budgets",
		ResourceName:   "AWS Budgets",
		Region:         finding.RegionGlobal,
		Issue:          "Cannot access AWS Budgets",
		Details:        finding.TextDetails("Ensure you have permissions to access AWS Budgets API"),
		Recommendation: "Grant budgets:ViewBudget",
	}
}

func spendAmount(s *budgettypes.Spend) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(deref(s.Amount), 64)
	if err != nil {
		return 0
	}
	return v
}
