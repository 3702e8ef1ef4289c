package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are the config file names Load looks for, in priority order.
var FileNames = []string{".alertspectre.yaml", ".alertspectre.yml"}

// Config holds alertspectre configuration loaded from .alertspectre.yaml.
type Config struct {
	Regions              []string   `yaml:"regions"`
	Profile              string     `yaml:"profile"`
	IdleDays             int        `yaml:"idle_days"`
	StaleDays            int        `yaml:"stale_days"`
	IdleCPUThreshold     float64    `yaml:"idle_cpu_threshold"`
	StoppedThresholdDays int        `yaml:"stopped_threshold_days"`
	FindingsDays         int        `yaml:"findings_days"`
	MinMonthlyCost       float64    `yaml:"min_monthly_cost"`
	Format               string     `yaml:"format"`
	LogFormat            string     `yaml:"log_format"`
	Timeout              string     `yaml:"timeout"`
	Thresholds           Thresholds `yaml:"thresholds"`
	Exclude              Exclude    `yaml:"exclude"`
}

// Thresholds tunes alert classification and account-level checks.
type Thresholds struct {
	CostSpike          float64 `yaml:"cost_spike" json:"cost_spike"`
	HighCost           float64 `yaml:"high_cost" json:"high_cost"`
	BudgetUsagePercent float64 `yaml:"budget_usage_percent" json:"budget_usage_percent"`
	MinAnomalyImpact   float64 `yaml:"min_anomaly_impact" json:"min_anomaly_impact"`
}

// Exclude defines resources to skip during scanning.
type Exclude struct {
	ResourceIDs []string `yaml:"resource_ids"`
	Tags        []string `yaml:"tags"`
}

// ParseTags converts tag strings ("Key=Value" or "Key") into a map.
// Key-only entries have an empty string value, meaning "match any value".
func (e Exclude) ParseTags() map[string]string {
	if len(e.Tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.Tags))
	for _, s := range e.Tags {
		if k, v, ok := strings.Cut(s, "="); ok {
			m[k] = v
		} else {
			m[s] = ""
		}
	}
	return m
}

// TimeoutDuration parses the timeout string as a duration.
func (c Config) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Load searches dir for a config file and returns the parsed config.
// Returns an empty Config if no file is found.
func Load(dir string) (Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		return cfg, nil
	}

	return Config{}, nil
}

// Validate rejects settings that would silently misbehave.
func (c Config) Validate() error {
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout %q", c.Timeout)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (use text or json)", c.LogFormat)
	}
	for name, v := range map[string]float64{
		"idle_cpu_threshold":              c.IdleCPUThreshold,
		"min_monthly_cost":                c.MinMonthlyCost,
		"thresholds.cost_spike":           c.Thresholds.CostSpike,
		"thresholds.high_cost":            c.Thresholds.HighCost,
		"thresholds.budget_usage_percent": c.Thresholds.BudgetUsagePercent,
		"thresholds.min_anomaly_impact":   c.Thresholds.MinAnomalyImpact,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.IdleDays < 0 || c.StaleDays < 0 || c.StoppedThresholdDays < 0 || c.FindingsDays < 0 {
		return fmt.Errorf("day settings must not be negative")
	}
	return nil
}
