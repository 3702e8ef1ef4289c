package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/alertspectre/internal/alert"
	"github.com/ppiankov/alertspectre/internal/analyzer"
)

// Generate writes alerts grouped by severity followed by the summary.
func (r *TextReporter) Generate(data Data) error {
	w := &errWriter{w: r.Writer}

	w.printf("%s %s: alert report\n", data.Tool, data.Version)
	if data.Target.AccountID != "" {
		w.printf("Account: %s\n", data.Target.AccountID)
	}
	w.printf("Generated: %s\n", data.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if len(data.Config.Regions) > 0 {
		w.printf("Regions: %s\n", strings.Join(data.Config.Regions, ", "))
	}
	w.printf("\n")

	if len(data.Alerts) == 0 {
		w.printf("No alerts found.\n\n")
	} else {
		writeAlerts(w, data.Alerts)
	}

	writeSummary(w, data.Summary)
	writeRecommendations(w, data.Recommendations)

	if len(data.Errors) > 0 {
		w.printf("\nErrors (%d):\n", len(data.Errors))
		for _, e := range data.Errors {
			w.printf("  %s\n", e)
		}
	}
	return w.err
}

// WriteFeedText renders a feed for terminals. Recommendations may be nil.
func WriteFeedText(out io.Writer, feed analyzer.Feed, feedDate string, recommendations []string) error {
	w := &errWriter{w: out}
	w.printf("Alert feed (%s)", feed.FeedType)
	if feedDate != "" {
		w.printf(" for %s", feedDate)
	}
	w.printf("\nGenerated: %s\n\n", feed.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if len(feed.Alerts) == 0 {
		w.printf("No alerts in this feed.\n\n")
	} else {
		writeAlerts(w, feed.Alerts)
	}
	writeSummary(w, feed.Summary)
	writeRecommendations(w, recommendations)
	return w.err
}

// WriteSummaryText renders a summary for terminals.
func WriteSummaryText(out io.Writer, summary analyzer.Summary) error {
	w := &errWriter{w: out}
	writeSummary(w, summary)
	return w.err
}

func writeAlerts(w *errWriter, alerts []alert.Alert) {
	w.printf("Alerts (%d):\n", len(alerts))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, a := range alerts {
		name := a.ResourceID
		if a.ResourceName != "" && a.ResourceName != a.ResourceID {
			name = fmt.Sprintf("%s (%s)", a.ResourceID, a.ResourceName)
		}
		fmt.Fprintf(tw, "  [%s]\t%s\t%s\t%s\t$%.2f/mo\n",
			strings.ToUpper(a.Severity), a.TypeLabel, name, a.Region, a.MonthlyCost)
	}
	if err := tw.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	w.printf("\n")
}

func writeSummary(w *errWriter, s analyzer.Summary) {
	w.printf("Summary\n")
	w.printf("  Total alerts:         %d\n", s.TotalAlerts)
	w.printf("  Monthly cost impact:  $%.2f\n", s.TotalMonthlyCostImpact)
	writeCounts(w, "By type", s.ByType)
	writeCounts(w, "By severity", s.BySeverity)
	writeCounts(w, "By service", s.ByService)
}

func writeCounts(w *errWriter, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	w.printf("  %-21s %s\n", label+":", strings.Join(parts, ", "))
}

func writeRecommendations(w *errWriter, lines []string) {
	if len(lines) == 0 {
		return
	}
	w.printf("\nRecommendations:\n")
	for _, l := range lines {
		w.printf("  - %s\n", l)
	}
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
