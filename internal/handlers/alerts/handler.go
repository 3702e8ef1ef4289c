package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/aws"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes   = 16 << 20
	serviceName    = "alertspectre"
	annualMultiple = 12
)

// Default thresholds echoed by the configure endpoint.
const (
	DefaultBudgetThresholdPercentage = 80.0
	DefaultIdleDaysThreshold         = 7
)

// AuditRequest selects what an audit covers. Empty Regions leaves the
// choice to the auditor. Zero FindingsDays keeps the auditor's lookback.
type AuditRequest struct {
	Regions      []string
	Services     []string
	FindingsDays int
}

// Auditor runs an account audit.
type Auditor interface {
	Audit(ctx context.Context, req AuditRequest) (*aws.Audit, error)
}

// Options tunes alert generation.
type Options struct {
	Thresholds alert.Thresholds
	Recommend  analyzer.RecommendOptions
	Debug      bool
	Version    string
	Now        func() time.Time
}

// Handler serves the audit and alert feed endpoints.
type Handler struct {
	auditor Auditor
	opts    Options
	now     func() time.Time
}

// NewHandler creates a handler. Zero thresholds fall back to the defaults.
func NewHandler(auditor Auditor, opts Options) *Handler {
	if opts.Thresholds.CostSpike <= 0 {
		opts.Thresholds = alert.DefaultThresholds()
	}
	if opts.Recommend.HighCostThreshold <= 0 {
		opts.Recommend = analyzer.DefaultRecommendOptions()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{auditor: auditor, opts: opts, now: now}
}

type requestBody struct {
	Regions     []string        `json:"regions"`
	Services    []string        `json:"services"`
	FeedType    string          `json:"feed_type"`
	AlertTypes  []string        `json:"alert_types"`
	SeverityMin string          `json:"severity_min"`
	Days        int             `json:"days"`
	Results     json.RawMessage `json:"results"`
}

type auditSummary struct {
	TotalIssues         int     `json:"total_issues"`
	TotalMonthlySavings float64 `json:"total_monthly_savings"`
	TotalAnnualSavings  float64 `json:"total_annual_savings"`
}

type auditResponse struct {
	ScanTimestamp time.Time    `json:"scan_timestamp"`
	AccountID     string       `json:"account_id"`
	Results       finding.Tree `json:"results"`
	Errors        []string     `json:"errors"`
	Summary       auditSummary `json:"summary"`
}

type alertsResponse struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Count       int           `json:"count"`
	Alerts      []alert.Alert `json:"alerts"`
}

type configureRequest struct {
	BudgetThresholdPercentage *float64 `json:"budget_threshold_percentage"`
	CostSpikeThreshold        *float64 `json:"cost_spike_threshold"`
	IdleDaysThreshold         *int     `json:"idle_days_threshold"`
}

type configuration struct {
	BudgetThresholdPercentage float64   `json:"budget_threshold_percentage"`
	CostSpikeThreshold        float64   `json:"cost_spike_threshold"`
	IdleDaysThreshold         int       `json:"idle_days_threshold"`
	ConfiguredAt              time.Time `json:"configured_at"`
}

type configureResponse struct {
	Message       string        `json:"message"`
	Configuration configuration `json:"configuration"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Type   string   `json:"type"`
	Detail []string `json:"detail,omitempty"`
}

// requestError marks failures caused by the request content.
type requestError struct {
	kind string
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(kind string, format string, args ...any) error {
	return &requestError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Index lists the available endpoints.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"name":        serviceName,
		"version":     h.opts.Version,
		"description": "AWS cost and security alert feed API",
		"endpoints": map[string]string{
			"/":                     "API documentation (this page)",
			"/health":               "Health check endpoint",
			"/api/services":         "List scannable services and alert types (GET)",
			"/api/account-id":       "Get the AWS account ID of the API server (GET)",
			"/api/audit":            "Run an account audit (POST)",
			"/api/costs":            "Get cost analysis by AWS service (POST)",
			"/api/costs/trends":     "Get cost trends over time (POST)",
			"/api/costs/anomalies":  "Detect cost anomalies (POST)",
			"/api/budgets":          "Check budget thresholds (POST)",
			"/api/guardduty":        "Check GuardDuty status and findings (POST)",
			"/api/alerts":           "Aggregate and rank alerts (POST)",
			"/api/alerts/feed":      "Get alert feed, daily or realtime (POST)",
			"/api/alerts/summary":   "Get alert summary statistics (POST)",
			"/api/alerts/configure": "Configure alert thresholds (POST)",
		},
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

type alertTypeInfo struct {
	Type  alert.Type `json:"type"`
	Label string     `json:"label"`
}

// Services lists the scanner catalog and the alert taxonomy.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	services := aws.Catalog()
	types := make([]alertTypeInfo, 0, len(alert.AllTypes))
	for _, t := range alert.AllTypes {
		types = append(types, alertTypeInfo{Type: t, Label: alert.DefaultLabels[t]})
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"services":       services,
		"total_services": len(services),
		"alert_types":    types,
	})
}

// Audit runs a scan and returns the findings tree with totals.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	audit, err := h.audit(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	issues, savings := audit.Results.Totals()
	errs := audit.Errors
	if errs == nil {
		errs = []string{}
	}
	h.writeJSON(w, r, http.StatusOK, auditResponse{
		ScanTimestamp: audit.ScanTimestamp,
		AccountID:     audit.AccountID,
		Results:       audit.Results,
		Errors:        errs,
		Summary: auditSummary{
			TotalIssues:         issues,
			TotalMonthlySavings: savings,
			TotalAnnualSavings:  savings * annualMultiple,
		},
	})
}

// Alerts returns the ranked, optionally filtered alert list.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, _, err := h.alerts(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, alertsResponse{
		GeneratedAt: h.now(),
		Count:       len(alerts),
		Alerts:      alerts,
	})
}

// Feed returns a daily (default) or realtime feed.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	alerts, body, err := h.alerts(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	builder := analyzer.NewFeedBuilder(h.now, h.opts.Recommend)
	switch body.FeedType {
	case "", analyzer.FeedDaily:
		h.writeJSON(w, r, http.StatusOK, builder.Daily(alerts))
	default:
		h.writeJSON(w, r, http.StatusOK, builder.Realtime(alerts))
	}
}

// Summary returns summary statistics over the alerts.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	alerts, _, err := h.alerts(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, analyzer.Summarize(alerts))
}

// Configure validates and echoes alert thresholds. Nothing is persisted.
func (h *Handler) Configure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cfg := configuration{
		BudgetThresholdPercentage: DefaultBudgetThresholdPercentage,
		CostSpikeThreshold:        alert.DefaultCostSpikeThreshold,
		IdleDaysThreshold:         DefaultIdleDaysThreshold,
		ConfiguredAt:              h.now(),
	}
	if req.BudgetThresholdPercentage != nil {
		cfg.BudgetThresholdPercentage = *req.BudgetThresholdPercentage
	}
	if req.CostSpikeThreshold != nil {
		cfg.CostSpikeThreshold = *req.CostSpikeThreshold
	}
	if req.IdleDaysThreshold != nil {
		cfg.IdleDaysThreshold = *req.IdleDaysThreshold
	}
	if cfg.BudgetThresholdPercentage < 0 || cfg.CostSpikeThreshold < 0 || cfg.IdleDaysThreshold < 0 {
		h.writeError(w, r, badRequest("ValidationError", "thresholds must not be negative"))
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Float64("budget_threshold_percentage", cfg.BudgetThresholdPercentage).
		Float64("cost_spike_threshold", cfg.CostSpikeThreshold).
		Int("idle_days_threshold", cfg.IdleDaysThreshold).
		Msg("alert thresholds configured")

	h.writeJSON(w, r, http.StatusOK, configureResponse{
		Message:       "Alert thresholds configured",
		Configuration: cfg,
	})
}

// alerts produces the ranked alert list for a request, from the supplied
// findings tree when present and from a fresh audit otherwise.
func (h *Handler) alerts(r *http.Request) ([]alert.Alert, requestBody, error) {
	body, err := decodeBody(r)
	if err != nil {
		return nil, body, err
	}
	opts, err := filterOptions(body)
	if err != nil {
		return nil, body, err
	}

	var tree finding.Tree
	if hasResults(body.Results) {
		tree, err = finding.DecodeTree(body.Results)
		if err != nil {
			return nil, body, &requestError{kind: "DecodeError", err: fmt.Errorf("decode results: %w", err)}
		}
	} else {
		audit, err := h.audit(r.Context(), body)
		if err != nil {
			return nil, body, err
		}
		tree = audit.Results
	}

	normalizer := alert.NewNormalizer(alert.NewClassifier(h.opts.Thresholds), h.now)
	alerts := normalizer.Aggregate(tree)
	if len(opts.Types) > 0 || opts.SeverityMin != "" || opts.Days > 0 {
		alerts = analyzer.Filter(alerts, opts, h.now())
	}
	return alerts, body, nil
}

func (h *Handler) audit(ctx context.Context, body requestBody) (*aws.Audit, error) {
	if h.auditor == nil {
		return nil, errors.New("live scanning is not configured; supply results in the request body")
	}
	if _, err := aws.ParseServices(body.Services); err != nil {
		return nil, &requestError{kind: "ValidationError", err: err}
	}
	audit, err := h.auditor.Audit(ctx, AuditRequest{Regions: body.Regions, Services: body.Services})
	if err != nil {
		return nil, fmt.Errorf("run audit: %w", err)
	}
	return audit, nil
}

func filterOptions(body requestBody) (analyzer.FilterOptions, error) {
	opts := analyzer.FilterOptions{Days: body.Days}
	if body.Days < 0 {
		return opts, badRequest("ValidationError", "days must not be negative")
	}
	for _, t := range body.AlertTypes {
		if !alert.ValidType(t) {
			return opts, badRequest("ValidationError", "unknown alert type %q", t)
		}
		opts.Types = append(opts.Types, alert.Type(t))
	}
	if body.SeverityMin != "" {
		if alert.SeverityRank(body.SeverityMin) == 0 {
			return opts, badRequest("ValidationError", "unknown severity %q", body.SeverityMin)
		}
		opts.SeverityMin = strings.ToLower(body.SeverityMin)
	}
	switch body.FeedType {
	case "", analyzer.FeedDaily, analyzer.FeedRealtime:
	default:
		return opts, badRequest("ValidationError", "feed_type must be %q or %q", analyzer.FeedDaily, analyzer.FeedRealtime)
	}
	return opts, nil
}

func hasResults(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func decodeBody(r *http.Request) (requestBody, error) {
	var body requestBody
	err := decodeJSON(r, &body)
	return body, err
}

// decodeJSON reads an optional JSON body. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return badRequest("ValidationError", "%s must be %s", typeErr.Field, describeKind(typeErr.Type.Kind().String()))
		}
		return &requestError{kind: "DecodeError", err: fmt.Errorf("decode request body: %w", err)}
	}
	return nil
}

func describeKind(kind string) string {
	switch kind {
	case "slice":
		return "a list"
	case "string":
		return "a string"
	case "ptr", "float64", "int":
		return "a number"
	default:
		return "of type " + kind
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error(), Type: "InternalError"}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = http.StatusBadRequest
		resp.Type = reqErr.kind
	}
	if h.opts.Debug {
		for e := err; e != nil; e = errors.Unwrap(e) {
			resp.Detail = append(resp.Detail, fmt.Sprintf("%T: %v", e, e))
		}
	}

	event := zerolog.Ctx(r.Context()).Error()
	if status < http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Warn()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	h.writeJSON(w, r, status, resp)
}
