package commands

import (
	"fmt"
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
	"github.com/ppiankov/alertspectre/internal/report"
	"github.com/spf13/cobra"
)

var feedFlags struct {
	audit      auditFlags
	filter     filterFlags
	feedType   string
	format     string
	outputFile string
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Build a daily or realtime alert feed",
	Long: `Build an alert feed from a live scan or a saved findings file.

The daily feed keeps alerts from the last 24 hours and adds recommendations.
The realtime feed keeps every alert that passes the filters.`,
	RunE: runFeed,
}

func init() {
	addAuditFlags(feedCmd, &feedFlags.audit)
	addFilterFlags(feedCmd, &feedFlags.filter)
	feedCmd.Flags().StringVar(&feedFlags.feedType, "type", analyzer.FeedDaily, "Feed type: daily or realtime")
	feedCmd.Flags().StringVar(&feedFlags.format, "format", report.FormatJSON, "Output format: json or text")
	feedCmd.Flags().StringVarP(&feedFlags.outputFile, "output", "o", "", "Output file path (default: stdout)")
}

func runFeed(cmd *cobra.Command, _ []string) error {
	if feedFlags.feedType != analyzer.FeedDaily && feedFlags.feedType != analyzer.FeedRealtime {
		return fmt.Errorf("unsupported feed type: %s (use daily or realtime)", feedFlags.feedType)
	}
	if feedFlags.format != report.FormatJSON && feedFlags.format != report.FormatText {
		return fmt.Errorf("unsupported format: %s (use json or text)", feedFlags.format)
	}
	feedFlags.audit.applyConfig(cmd)
	feedFlags.filter.applyConfig(cmd)
	filterOpts, err := feedFlags.filter.options()
	if err != nil {
		return err
	}

	tree, _, err := loadResults(cmd.Context(), &feedFlags.audit)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	normalizer := alert.NewNormalizer(alert.NewClassifier(feedFlags.audit.thresholds()), clock)
	alerts := analyzer.Filter(normalizer.Aggregate(tree), filterOpts, now)
	builder := analyzer.NewFeedBuilder(clock, feedFlags.audit.recommendOptions())

	w, closeOut, err := openOutput(feedFlags.outputFile)
	if err != nil {
		return err
	}

	if feedFlags.feedType == analyzer.FeedDaily {
		daily := builder.Daily(alerts)
		if feedFlags.format == report.FormatText {
			err = report.WriteFeedText(w, daily.Feed, daily.FeedDate, daily.Recommendations)
		} else {
			err = report.WriteJSON(w, daily)
		}
	} else {
		feed := builder.Realtime(alerts)
		if feedFlags.format == report.FormatText {
			err = report.WriteFeedText(w, feed, "", nil)
		} else {
			err = report.WriteJSON(w, feed)
		}
	}
	if err != nil {
		_ = closeOut()
		return fmt.Errorf("write feed: %w", err)
	}
	return closeOut()
}
