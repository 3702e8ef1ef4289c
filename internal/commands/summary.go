package commands

import (
	"fmt"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/report"
	"github.com/spf13/cobra"
)

var summaryFlags struct {
	audit  auditFlags
	filter filterFlags
	format string
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize alerts by type, severity, and service",
	RunE:  runSummary,
}

func init() {
	addAuditFlags(summaryCmd, &summaryFlags.audit)
	addFilterFlags(summaryCmd, &summaryFlags.filter)
	summaryCmd.Flags().StringVar(&summaryFlags.format, "format", report.FormatText, "Output format: text or json")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	if summaryFlags.format != report.FormatJSON && summaryFlags.format != report.FormatText {
		return fmt.Errorf("unsupported format: %s (use text or json)", summaryFlags.format)
	}
	summaryFlags.audit.applyConfig(cmd)
	summaryFlags.filter.applyConfig(cmd)
	filterOpts, err := summaryFlags.filter.options()
	if err != nil {
		return err
	}

	tree, _, err := loadResults(cmd.Context(), &summaryFlags.audit)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	normalizer := alert.NewNormalizer(alert.NewClassifier(summaryFlags.audit.thresholds()), func() time.Time { return now })
	summary := analyzer.Summarize(analyzer.Filter(normalizer.Aggregate(tree), filterOpts, now))

	if summaryFlags.format == report.FormatJSON {
		return report.WriteJSON(cmd.OutOrStdout(), summary)
	}
	return report.WriteSummaryText(cmd.OutOrStdout(), summary)
}
