package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ppiankov/alertspectre/internal/aws"
	"github.com/ppiankov/alertspectre/internal/finding"
)

const (
	costPeriodMonthly   = "MONTHLY"
	defaultFindingsDays = aws.DefaultFindingsDays
	accountInstructions = "Use this Account ID when creating the trust relationship for the IAM role in your AWS account"
)

// billingRegion is where the global Cost Explorer and Budgets APIs are queried.
var billingRegion = []string{"us-east-1"}

// IdentityResolver reports the caller identity of the server's credentials.
// Auditors that implement it enable the account-id endpoint.
type IdentityResolver interface {
	CallerIdentity(ctx context.Context) (aws.Identity, error)
}

type accountIDResponse struct {
	AccountID    string `json:"account_id"`
	ARN          string `json:"arn"`
	Instructions string `json:"instructions"`
}

type costsResponse struct {
	Period        string            `json:"period"`
	Regions       []string          `json:"regions"`
	Costs         []finding.Finding `json:"costs"`
	TotalServices int               `json:"total_services"`
	Errors        []string          `json:"errors"`
}

type trendsResponse struct {
	Days   int               `json:"days"`
	Trends []finding.Finding `json:"trends"`
	Errors []string          `json:"errors"`
}

type anomaliesResponse struct {
	Anomalies      []finding.Finding `json:"anomalies"`
	TotalAnomalies int               `json:"total_anomalies"`
	Errors         []string          `json:"errors"`
}

type budgetsResponse struct {
	BudgetAlerts []finding.Finding `json:"budget_alerts"`
	TotalAlerts  int               `json:"total_alerts"`
	Errors       []string          `json:"errors"`
}

type guardDutyResponse struct {
	Regions       []string          `json:"regions"`
	Days          int               `json:"days"`
	Status        []finding.Finding `json:"status"`
	Findings      []finding.Finding `json:"findings"`
	TotalFindings int               `json:"total_findings"`
	Errors        []string          `json:"errors"`
}

type costsBody struct {
	requestBody
	Period string `json:"period"`
}

// AccountID returns the account the server's credentials belong to.
func (h *Handler) AccountID(w http.ResponseWriter, r *http.Request) {
	resolver, ok := h.auditor.(IdentityResolver)
	if !ok {
		h.writeError(w, r, errors.New("caller identity is not available; live scanning is not configured"))
		return
	}
	id, err := resolver.CallerIdentity(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("resolve caller identity: %w", err))
		return
	}
	h.writeJSON(w, r, http.StatusOK, accountIDResponse{
		AccountID:    id.Account,
		ARN:          id.ARN,
		Instructions: accountInstructions,
	})
}

// Costs returns monthly cost per AWS service.
func (h *Handler) Costs(w http.ResponseWriter, r *http.Request) {
	var body costsBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	period := strings.ToUpper(strings.TrimSpace(body.Period))
	if period == "" {
		period = costPeriodMonthly
	}
	if period != costPeriodMonthly {
		h.writeError(w, r, badRequest("ValidationError", "period %q is not supported; use %s", body.Period, costPeriodMonthly))
		return
	}
	regions := body.Regions
	if len(regions) == 0 {
		regions = billingRegion
	}

	tree, errs, err := h.scoped(r.Context(), body.requestBody, AuditRequest{
		Regions:  billingRegion,
		Services: []string{aws.ServiceCostExplorer},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	costs := tree.Findings(aws.CheckCostByService)
	h.writeJSON(w, r, http.StatusOK, costsResponse{
		Period:        period,
		Regions:       regions,
		Costs:         costs,
		TotalServices: len(costs),
		Errors:        errs,
	})
}

// CostTrends returns the per-service cost series with their trend direction.
func (h *Handler) CostTrends(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	days, err := lookbackDays(body.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tree, errs, err := h.scoped(r.Context(), body, AuditRequest{
		Regions:  billingRegion,
		Services: []string{aws.ServiceCostExplorer},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, trendsResponse{
		Days:   days,
		Trends: tree.Findings(aws.CheckCostByService),
		Errors: errs,
	})
}

// CostAnomalies returns detected cost anomalies and monitor configuration issues.
func (h *Handler) CostAnomalies(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tree, errs, err := h.scoped(r.Context(), body, AuditRequest{
		Regions:  billingRegion,
		Services: []string{aws.ServiceCostExplorer},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	anomalies := tree.Findings(aws.CheckCostAnomaly, aws.CheckAnomalyDetection)
	h.writeJSON(w, r, http.StatusOK, anomaliesResponse{
		Anomalies:      anomalies,
		TotalAnomalies: len(anomalies),
		Errors:         errs,
	})
}

// Budgets returns budgets over threshold and budget setup issues.
func (h *Handler) Budgets(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tree, errs, err := h.scoped(r.Context(), body, AuditRequest{
		Regions:  billingRegion,
		Services: []string{aws.ServiceCostExplorer},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	budgets := tree.Findings(aws.CheckBudgetThreshold, aws.CheckBudgetConfiguration, aws.CheckBudgetAccess)
	h.writeJSON(w, r, http.StatusOK, budgetsResponse{
		BudgetAlerts: budgets,
		TotalAlerts:  len(budgets),
		Errors:       errs,
	})
}

// GuardDuty returns detector status and recent high-severity findings.
func (h *Handler) GuardDuty(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	days, err := lookbackDays(body.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	regions := body.Regions
	if regions == nil {
		regions = []string{}
	}

	tree, errs, err := h.scoped(r.Context(), body, AuditRequest{
		Regions:      body.Regions,
		Services:     []string{aws.ServiceGuardDuty},
		FindingsDays: days,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	findings := tree.Findings(aws.CheckGuardDutyFinding)
	h.writeJSON(w, r, http.StatusOK, guardDutyResponse{
		Regions:       regions,
		Days:          days,
		Status:        tree.Findings(aws.CheckGuardDutyEnabled, aws.CheckGuardDutyStatus, aws.CheckGuardDutyAccess),
		Findings:      findings,
		TotalFindings: len(findings),
		Errors:        errs,
	})
}

// scoped returns the findings tree for a single-service endpoint, decoded from
// the request's results when supplied and from a scoped audit otherwise.
func (h *Handler) scoped(ctx context.Context, body requestBody, req AuditRequest) (finding.Tree, []string, error) {
	if hasResults(body.Results) {
		tree, err := finding.DecodeTree(body.Results)
		if err != nil {
			return nil, nil, &requestError{kind: "DecodeError", err: fmt.Errorf("decode results: %w", err)}
		}
		return tree, []string{}, nil
	}
	if h.auditor == nil {
		return nil, nil, errors.New("live scanning is not configured; supply results in the request body")
	}
	audit, err := h.auditor.Audit(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("run audit: %w", err)
	}
	errs := audit.Errors
	if errs == nil {
		errs = []string{}
	}
	return audit.Results, errs, nil
}

func lookbackDays(days int) (int, error) {
	switch {
	case days < 0:
		return 0, badRequest("ValidationError", "days must not be negative")
	case days == 0:
		return defaultFindingsDays, nil
	default:
		return days, nil
	}
}
