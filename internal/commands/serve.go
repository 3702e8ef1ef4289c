package commands

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	handlers "github.com/ppiankov/alertspectre/internal/handlers/alerts"
	"github.com/ppiankov/alertspectre/internal/logging"
	"github.com/ppiankov/alertspectre/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultServeRegion is scanned when a request names no region, all-regions
// is off and the profile configures none.
const defaultServeRegion = "us-east-1"

// serverSettings is resolved from flags and ALERTSPECTRE_* environment variables.
type serverSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Debug           bool          `mapstructure:"debug"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllRegions      bool          `mapstructure:"all_regions"`
	Concurrency     int           `mapstructure:"concurrency"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the alert API over HTTP",
	Long: `Start the HTTP API. Each request either carries a findings tree in its
"results" field or triggers a live scan with the configured AWS profile.

Settings can also come from ALERTSPECTRE_HOST, ALERTSPECTRE_PORT,
ALERTSPECTRE_DEBUG, ALERTSPECTRE_SHUTDOWN_TIMEOUT, ALERTSPECTRE_ALL_REGIONS
and ALERTSPECTRE_CONCURRENCY.`,
	RunE: runServe,
}

func init() {
	fs := serveCmd.Flags()
	fs.String("host", "0.0.0.0", "Listen host")
	fs.Int("port", 5000, "Listen port")
	fs.Bool("debug", false, "Include error details in API responses")
	fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fs.Bool("all-regions", true, "Scan all enabled regions when a request names none")
	fs.Int("concurrency", defaultRegionConcurrency, "Regions scanned in parallel")
}

func loadServerSettings(cmd *cobra.Command) (serverSettings, error) {
	v := viper.New()
	v.SetEnvPrefix("alertspectre")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"host", "port", "debug", "shutdown-timeout", "all-regions", "concurrency"} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), cmd.Flags().Lookup(name)); err != nil {
			return serverSettings{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var settings serverSettings
	if err := v.Unmarshal(&settings); err != nil {
		return serverSettings{}, fmt.Errorf("failed to parse server settings: %w", err)
	}
	if settings.Port <= 0 || settings.Port > 65535 {
		return serverSettings{}, fmt.Errorf("invalid port %d", settings.Port)
	}
	return settings, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadServerSettings(cmd)
	if err != nil {
		return err
	}

	format := logFormat
	if format == "" {
		format = cfg.LogFormat
	}
	logger := logging.NewServer(os.Stderr, verbose || settings.Debug, format)

	flags := auditFlags{}
	flags.applyConfig(cmd)

	api := server.NewWebAPI(logger, server.Config{
		Addr:            net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port)),
		ShutdownTimeout: settings.ShutdownTimeout,
		Dependencies: server.Dependencies{
			Auditor: &liveAuditor{
				profile:        resolveProfile(),
				scanConfig:     flags.scanConfig(),
				concurrency:    settings.Concurrency,
				allRegions:     settings.AllRegions,
				fallbackRegion: defaultServeRegion,
			},
			Options: handlers.Options{
				Thresholds: flags.thresholds(),
				Recommend:  flags.recommendOptions(),
				Debug:      settings.Debug,
				Version:    version,
			},
		},
	})

	return api.Start(cmd.Context())
}
