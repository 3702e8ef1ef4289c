package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/alertspectre/internal/config"
	"github.com/ppiankov/alertspectre/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	profile   string
	logFormat string
	version   string
	commit    string
	date      string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "alertspectre",
	Short: "alertspectre — AWS cost and security alert feed",
	Long: `alertspectre scans an AWS account for wasted spend and security exposure,
turns the raw findings into typed alerts (cost spikes and anomalies, idle
resources, budget overruns, high-severity GuardDuty threats), and ranks them by
severity and monthly cost.

Alerts can be filtered, summarized, or delivered as a daily or realtime feed,
either from the command line or through the HTTP API ('alertspectre serve').`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(".")
		if err == nil {
			err = loaded.Validate()
		}
		format := logFormat
		if format == "" && err == nil {
			format = loaded.LogFormat
		}
		logging.Init(verbose, format)
		if err != nil {
			slog.Warn("Failed to load config file", "error", err)
		} else {
			cfg = loaded
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "alertspectre %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// Execute runs the root command with injected build info.
func Execute(ctx context.Context, v, c, d string) error {
	version = v
	commit = c
	date = d
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS profile name")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
