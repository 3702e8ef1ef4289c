package commands

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/aws"
	"github.com/ppiankov/alertspectre/internal/config"
	"github.com/ppiankov/alertspectre/internal/finding"
	handlers "github.com/ppiankov/alertspectre/internal/handlers/alerts"
	"github.com/ppiankov/alertspectre/internal/report"
	"github.com/spf13/cobra"
)

const defaultRegionConcurrency = 4

// ExitCodeError signals a non-zero exit code without being a runtime error.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// enhanceError wraps an error with context and suggestions for common AWS issues.
func enhanceError(action string, err error) error {
	msg := err.Error()

	var hint string
	switch {
	case strings.Contains(msg, "NoCredentialProviders") || strings.Contains(msg, "failed to retrieve credentials"):
		hint = "Configure AWS credentials: set AWS_PROFILE, AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, or run 'aws configure'"
	case strings.Contains(msg, "ExpiredToken"):
		hint = "AWS session token expired. Refresh credentials or run 'aws sso login'"
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "UnauthorizedOperation"):
		hint = "Insufficient permissions. Apply the IAM policy from 'alertspectre init' to your role/user"
	case strings.Contains(msg, "OptInRequired") || strings.Contains(msg, "SubscriptionRequiredException"):
		hint = "Service not enabled for this account. Exclude it with --services or enable it in the console"
	case strings.Contains(msg, "RequestExpired"):
		hint = "Request expired. Check system clock synchronization"
	case strings.Contains(msg, "Throttling"):
		hint = "AWS API rate limit hit. Retry with fewer regions or increase timeout"
	}

	if hint != "" {
		return fmt.Errorf("%s: %w\n  hint: %s", action, err, hint)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// computeTargetHash generates a SHA256 hash for the target URI.
func computeTargetHash(profile string, regions []string) string {
	input := fmt.Sprintf("profile:%s,regions:%s", profile, strings.Join(regions, ","))
	h := sha256.Sum256([]byte(input))
	return fmt.Sprintf("sha256:%x", h)
}

// parseResourceIDs converts a slice of resource ID strings to a lookup map.
func parseResourceIDs(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result
}

// auditFlags are shared by every command that produces alerts.
type auditFlags struct {
	regions              []string
	allRegions           bool
	services             []string
	input                string
	timeout              time.Duration
	concurrency          int
	idleDays             int
	staleDays            int
	idleCPUThreshold     float64
	stoppedThresholdDays int
	findingsDays         int
	budgetUsagePercent   float64
	minAnomalyImpact     float64
	costSpikeThreshold   float64
	highCostThreshold    float64
	excludeIDs           []string
	excludeTags          []string
	noProgress           bool
}

func addAuditFlags(cmd *cobra.Command, f *auditFlags) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.regions, "regions", nil, "Comma-separated region filter")
	fs.BoolVar(&f.allRegions, "all-regions", true, "Scan all enabled regions")
	fs.StringSliceVar(&f.services, "services", nil, "Comma-separated service filter (see 'alertspectre services')")
	fs.StringVar(&f.input, "input", "", "Read a findings tree from a JSON file instead of scanning")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Minute, "Scan timeout")
	fs.IntVar(&f.concurrency, "concurrency", defaultRegionConcurrency, "Regions scanned in parallel")
	fs.IntVar(&f.idleDays, "idle-days", aws.DefaultIdleDays, "Lookback window for utilization metrics (days)")
	fs.IntVar(&f.staleDays, "stale-days", aws.DefaultStaleDays, "Age threshold for snapshots (days)")
	fs.Float64Var(&f.idleCPUThreshold, "idle-cpu-threshold", aws.DefaultIdleCPUThreshold, "CPU % below which a resource is idle")
	fs.IntVar(&f.stoppedThresholdDays, "stopped-threshold-days", aws.DefaultStoppedThresholdDays, "Days stopped before flagging EC2")
	fs.IntVar(&f.findingsDays, "findings-days", aws.DefaultFindingsDays, "GuardDuty findings lookback (days)")
	fs.Float64Var(&f.budgetUsagePercent, "budget-usage-percent", aws.DefaultBudgetUsagePercent, "Budget usage % that triggers an alert")
	fs.Float64Var(&f.minAnomalyImpact, "min-anomaly-impact", aws.DefaultMinAnomalyImpact, "Minimum cost anomaly impact to report ($)")
	fs.Float64Var(&f.costSpikeThreshold, "cost-spike-threshold", alert.DefaultCostSpikeThreshold, "Monthly cost above which a cost finding is a spike ($)")
	fs.Float64Var(&f.highCostThreshold, "high-cost-threshold", analyzer.DefaultHighCostThreshold, "Monthly cost above which an alert counts as high-cost ($)")
	fs.StringSliceVar(&f.excludeIDs, "exclude-ids", nil, "Resource IDs to skip")
	fs.StringSliceVar(&f.excludeTags, "exclude-tags", nil, "Tags to skip, Key=Value or Key")
	fs.BoolVar(&f.noProgress, "no-progress", false, "Disable progress output")
}

// applyConfig fills flags the user did not set from the config file.
func (f *auditFlags) applyConfig(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if !changed("regions") && len(cfg.Regions) > 0 {
		f.regions = cfg.Regions
	}
	if !changed("timeout") && cfg.TimeoutDuration() > 0 {
		f.timeout = cfg.TimeoutDuration()
	}
	if !changed("idle-days") && cfg.IdleDays > 0 {
		f.idleDays = cfg.IdleDays
	}
	if !changed("stale-days") && cfg.StaleDays > 0 {
		f.staleDays = cfg.StaleDays
	}
	if !changed("idle-cpu-threshold") && cfg.IdleCPUThreshold > 0 {
		f.idleCPUThreshold = cfg.IdleCPUThreshold
	}
	if !changed("stopped-threshold-days") && cfg.StoppedThresholdDays > 0 {
		f.stoppedThresholdDays = cfg.StoppedThresholdDays
	}
	if !changed("findings-days") && cfg.FindingsDays > 0 {
		f.findingsDays = cfg.FindingsDays
	}
	if !changed("budget-usage-percent") && cfg.Thresholds.BudgetUsagePercent > 0 {
		f.budgetUsagePercent = cfg.Thresholds.BudgetUsagePercent
	}
	if !changed("min-anomaly-impact") && cfg.Thresholds.MinAnomalyImpact > 0 {
		f.minAnomalyImpact = cfg.Thresholds.MinAnomalyImpact
	}
	if !changed("cost-spike-threshold") && cfg.Thresholds.CostSpike > 0 {
		f.costSpikeThreshold = cfg.Thresholds.CostSpike
	}
	if !changed("high-cost-threshold") && cfg.Thresholds.HighCost > 0 {
		f.highCostThreshold = cfg.Thresholds.HighCost
	}
	f.excludeIDs = append(append([]string{}, cfg.Exclude.ResourceIDs...), f.excludeIDs...)
	f.excludeTags = append(append([]string{}, cfg.Exclude.Tags...), f.excludeTags...)
}

func (f *auditFlags) scanConfig() aws.ScanConfig {
	return aws.ScanConfig{
		IdleDays:             f.idleDays,
		StaleDays:            f.staleDays,
		IdleCPUThreshold:     f.idleCPUThreshold,
		StoppedThresholdDays: f.stoppedThresholdDays,
		FindingsDays:         f.findingsDays,
		BudgetUsagePercent:   f.budgetUsagePercent,
		MinAnomalyImpact:     f.minAnomalyImpact,
		Exclude: aws.ExcludeConfig{
			ResourceIDs: parseResourceIDs(f.excludeIDs),
			Tags:        config.Exclude{Tags: f.excludeTags}.ParseTags(),
		},
	}
}

func (f *auditFlags) thresholds() alert.Thresholds {
	return alert.Thresholds{CostSpike: f.costSpikeThreshold}
}

func (f *auditFlags) recommendOptions() analyzer.RecommendOptions {
	return analyzer.RecommendOptions{HighCostThreshold: f.highCostThreshold}
}

// resolveProfile returns the --profile flag, falling back to the config file.
func resolveProfile() string {
	if profile != "" {
		return profile
	}
	return cfg.Profile
}

// liveAuditor scans the account behind an AWS profile.
type liveAuditor struct {
	profile     string
	scanConfig  aws.ScanConfig
	concurrency int
	allRegions  bool
	progress    bool
	// fallbackRegion is scanned when no region is requested, all-regions
	// is off and the profile configures none.
	fallbackRegion string
}

// Audit implements handlers.Auditor.
func (a *liveAuditor) Audit(ctx context.Context, req handlers.AuditRequest) (*aws.Audit, error) {
	services, err := aws.ParseServices(req.Services)
	if err != nil {
		return nil, err
	}

	client, err := aws.NewClient(ctx, a.profile, "")
	if err != nil {
		return nil, enhanceError("initialize AWS client", err)
	}

	regions, err := resolveRegions(ctx, req.Regions, a.allRegions, client.Config().Region, a.fallbackRegion, client.ListEnabledRegions)
	if err != nil {
		return nil, enhanceError("resolve regions", err)
	}
	slog.Info("Scanning regions", "count", len(regions), "regions", regions)

	scanCfg := a.scanConfig
	if req.FindingsDays > 0 {
		scanCfg.FindingsDays = req.FindingsDays
	}
	scanner := aws.NewAccountScanner(client, regions, a.concurrency, scanCfg)
	scanner.SetServices(services)
	if a.progress {
		scanner.SetProgressFn(func(p aws.ScanProgress) {
			slog.Info("Scanning", "region", p.Region, "service", p.Scanner)
		})
	}

	audit, err := scanner.Scan(ctx)
	if err != nil {
		return nil, enhanceError("scan account", err)
	}
	for _, e := range audit.Errors {
		slog.Warn("Scanner error", "error", e)
	}
	return audit, nil
}

// CallerIdentity implements handlers.IdentityResolver.
func (a *liveAuditor) CallerIdentity(ctx context.Context) (aws.Identity, error) {
	client, err := aws.NewClient(ctx, a.profile, "")
	if err != nil {
		return aws.Identity{}, enhanceError("initialize AWS client", err)
	}
	return client.CallerIdentity(ctx)
}

// resolveRegions picks the regions to scan: the requested ones, every enabled
// region when allRegions is set, else the configured region, else fallback.
func resolveRegions(ctx context.Context, requested []string, allRegions bool, configured, fallback string,
	listEnabled func(context.Context) ([]string, error)) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	if allRegions {
		return listEnabled(ctx)
	}
	if configured != "" {
		return []string{configured}, nil
	}
	if fallback != "" {
		return []string{fallback}, nil
	}
	return nil, fmt.Errorf("no region specified; use --regions, --all-regions, or set AWS_REGION")
}

// loadResults produces the findings tree, from --input when given and from a
// live scan otherwise. The account id is empty for file input.
func loadResults(ctx context.Context, f *auditFlags) (finding.Tree, *aws.Audit, error) {
	if f.input != "" {
		tree, err := readTreeFile(f.input)
		return tree, nil, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	auditor := &liveAuditor{
		profile:     resolveProfile(),
		scanConfig:  f.scanConfig(),
		concurrency: f.concurrency,
		allRegions:  f.allRegions,
		progress:    !f.noProgress,
	}
	audit, err := auditor.Audit(ctx, handlers.AuditRequest{Regions: f.regions, Services: f.services})
	if err != nil {
		return nil, nil, err
	}
	return audit.Results, audit, nil
}

// readTreeFile reads a findings tree. Both a bare tree and an audit document
// carrying the tree under "results" are accepted.
func readTreeFile(path string) (finding.Tree, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}
	return decodeResults(data)
}

func decodeResults(data []byte) (finding.Tree, error) {
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Results) > 0 && envelope.Results[0] == '{' {
		data = envelope.Results
	}
	tree, err := finding.DecodeTree(data)
	if err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return tree, nil
}

// parseAlertTypes validates alert type names.
func parseAlertTypes(names []string) ([]alert.Type, error) {
	types := make([]alert.Type, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !alert.ValidType(n) {
			return nil, fmt.Errorf("unknown alert type %q", n)
		}
		types = append(types, alert.Type(n))
	}
	return types, nil
}

// treeAccount returns the first account id in the tree.
func treeAccount(tree finding.Tree) string {
	if len(tree) == 0 {
		return ""
	}
	return tree[0].ID
}

// openOutput returns stdout or a created file, with a matching close func.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

func selectReporter(format string, w io.Writer) (report.Reporter, error) {
	r, ok := report.New(format, w)
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s (use %s)", format, strings.Join(report.Formats, ", "))
	}
	return r, nil
}
