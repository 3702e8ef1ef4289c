package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/report"
	"github.com/spf13/cobra"
)

// filterFlags narrow the alerts a command prints.
type filterFlags struct {
	alertTypes     []string
	severityMin    string
	days           int
	minMonthlyCost float64
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.alertTypes, "alert-types", nil, "Comma-separated alert types to keep")
	fs.StringVar(&f.severityMin, "severity-min", "", "Minimum severity: critical, high, medium, low, info")
	fs.IntVar(&f.days, "days", 0, "Keep alerts from the last N days (0 keeps all)")
	fs.Float64Var(&f.minMonthlyCost, "min-monthly-cost", 0, "Minimum monthly cost impact to report ($)")
}

func (f *filterFlags) applyConfig(cmd *cobra.Command) {
	if !cmd.Flags().Changed("min-monthly-cost") && cfg.MinMonthlyCost > 0 {
		f.minMonthlyCost = cfg.MinMonthlyCost
	}
}

func (f *filterFlags) options() (analyzer.FilterOptions, error) {
	types, err := parseAlertTypes(f.alertTypes)
	if err != nil {
		return analyzer.FilterOptions{}, err
	}
	if f.severityMin != "" && alert.SeverityRank(f.severityMin) == 0 {
		return analyzer.FilterOptions{}, fmt.Errorf("invalid --severity-min %q", f.severityMin)
	}
	return analyzer.FilterOptions{
		Types:          types,
		SeverityMin:    f.severityMin,
		Days:           f.days,
		MinMonthlyCost: f.minMonthlyCost,
	}, nil
}

var scanFlags struct {
	audit       auditFlags
	filter      filterFlags
	format      string
	outputFile  string
	saveResults string
	failOn      string
	threshold   int
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the account and report prioritized alerts",
	Long: `Scan AWS services across regions, classify every finding into an alert,
and report the alerts ranked by severity and monthly cost impact.

Use --input to build alerts from a previously saved findings file instead of
scanning, and --fail-on to turn alerts into a non-zero exit code in CI.`,
	RunE: runScan,
}

func init() {
	addAuditFlags(scanCmd, &scanFlags.audit)
	addFilterFlags(scanCmd, &scanFlags.filter)
	scanCmd.Flags().StringVar(&scanFlags.format, "format", report.FormatText, "Output format: text, json, sarif, spectrehub")
	scanCmd.Flags().StringVarP(&scanFlags.outputFile, "output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().StringVar(&scanFlags.saveResults, "save-results", "", "Write the raw findings tree to this file")
	scanCmd.Flags().StringVar(&scanFlags.failOn, "fail-on", "", "Exit 1 when alerts at or above this severity are found")
	scanCmd.Flags().IntVar(&scanFlags.threshold, "threshold", 1, "Number of --fail-on alerts needed to fail")
}

func runScan(cmd *cobra.Command, _ []string) error {
	scanFlags.audit.applyConfig(cmd)
	scanFlags.filter.applyConfig(cmd)
	if !cmd.Flags().Changed("format") && cfg.Format != "" {
		scanFlags.format = cfg.Format
	}

	if err := report.ValidateFailOn(scanFlags.failOn); err != nil {
		return err
	}
	filterOpts, err := scanFlags.filter.options()
	if err != nil {
		return err
	}

	tree, audit, err := loadResults(cmd.Context(), &scanFlags.audit)
	if err != nil {
		return err
	}
	if scanFlags.saveResults != "" {
		if err := writeTreeFile(scanFlags.saveResults, tree); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	normalizer := alert.NewNormalizer(alert.NewClassifier(scanFlags.audit.thresholds()), func() time.Time { return now })
	alerts := analyzer.Filter(normalizer.Aggregate(tree), filterOpts, now)

	data := report.Data{
		Tool:      "alertspectre",
		Version:   version,
		Timestamp: now,
		Target: report.Target{
			Type:      "aws-account",
			URIHash:   computeTargetHash(resolveProfile(), scanFlags.audit.regions),
			AccountID: treeAccount(tree),
		},
		Config: report.ReportConfig{
			Regions:        scanFlags.audit.regions,
			Services:       scanFlags.audit.services,
			AlertTypes:     scanFlags.filter.alertTypes,
			SeverityMin:    scanFlags.filter.severityMin,
			Days:           scanFlags.filter.days,
			MinMonthlyCost: scanFlags.filter.minMonthlyCost,
		},
		Alerts:          alerts,
		Summary:         analyzer.Summarize(alerts),
		Recommendations: analyzer.Recommend(alerts, scanFlags.audit.recommendOptions()),
	}
	if audit != nil {
		data.Errors = audit.Errors
	}

	w, closeOut, err := openOutput(scanFlags.outputFile)
	if err != nil {
		return err
	}
	reporter, err := selectReporter(scanFlags.format, w)
	if err != nil {
		_ = closeOut()
		return err
	}
	if err := reporter.Generate(data); err != nil {
		_ = closeOut()
		return fmt.Errorf("write report: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	if code := report.ComputeExitCode(alerts, scanFlags.failOn, scanFlags.threshold); code != report.ExitOK {
		return ExitCodeError{Code: code}
	}
	return nil
}

func writeTreeFile(path string, tree finding.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := report.WriteJSON(f, tree); err != nil {
		_ = f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	return f.Close()
}
