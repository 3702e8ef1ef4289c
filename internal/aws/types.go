package aws

import (
	"context"
	"time"

	"github.com/ppiankov/alertspectre/internal/finding"
)

// Service keys used in the findings tree.
const (
	ServiceEC2            = "ec2"
	ServiceEBS            = "ebs"
	ServiceEIP            = "eip"
	ServiceSnapshots      = "snapshots"
	ServiceSecurityGroups = "sg"
	ServiceLoadBalancers  = "lb"
	ServiceNATGateways    = "nat"
	ServiceRDS            = "rds"
	ServiceGuardDuty      = "guardduty"
	ServiceCostExplorer   = "cost_explorer"
	ServiceCombined       = "combined"
)

// Check names emitted by the scanners.
const (
	CheckIdleInstances       = "idle_instances"
	CheckStoppedInstances    = "stopped_instances"
	CheckOrphanVolumes       = "orphan_volumes"
	CheckUnattachedEIPs      = "unattached_eips"
	CheckOldSnapshots        = "old_snapshots"
	CheckUnusedGroups        = "unused_groups"
	CheckOverlyPermissive    = "overly_permissive"
	CheckUnusedLoadBalancers = "unused_load_balancers"
	CheckUnusedGateways      = "unused_gateways"
	CheckIdleDatabases       = "idle_databases"
	CheckGuardDutyEnabled    = "guardduty_enabled"
	CheckGuardDutyStatus     = "guardduty_status"
	CheckGuardDutyFinding    = "guardduty_finding"
	CheckGuardDutyAccess     = "guardduty_access"
	CheckCostByService       = "cost_by_service"
	CheckCostAnomaly         = "cost_anomaly"
	CheckAnomalyDetection    = "cost_anomaly_detection"
	CheckBudgetThreshold     = "budget_threshold"
	CheckBudgetConfiguration = "budget_configuration"
	CheckBudgetAccess        = "budget_access"
)

// Defaults for ScanConfig fields left at zero.
const (
	DefaultIdleDays             = 7
	DefaultStaleDays            = 90
	DefaultIdleCPUThreshold     = 5.0
	DefaultStoppedThresholdDays = 30
	DefaultFindingsDays         = 30
	DefaultBudgetUsagePercent   = 80.0
	DefaultMinAnomalyImpact     = 10.0
)

// ScanResult holds the findings of one scanner run.
type ScanResult struct {
	Findings         []finding.Finding `json:"findings"`
	Errors           []string          `json:"errors,omitempty"`
	ResourcesScanned int               `json:"resources_scanned"`
}

// ScanConfig holds parameters that control scanning behavior.
type ScanConfig struct {
	AccountID            string
	IdleDays             int
	StaleDays            int
	IdleCPUThreshold     float64
	StoppedThresholdDays int
	FindingsDays         int
	BudgetUsagePercent   float64
	MinAnomalyImpact     float64
	Exclude              ExcludeConfig
}

// WithDefaults fills zero fields with their defaults.
func (c ScanConfig) WithDefaults() ScanConfig {
	if c.IdleDays <= 0 {
		c.IdleDays = DefaultIdleDays
	}
	if c.StaleDays <= 0 {
		c.StaleDays = DefaultStaleDays
	}
	if c.IdleCPUThreshold <= 0 {
		c.IdleCPUThreshold = DefaultIdleCPUThreshold
	}
	if c.StoppedThresholdDays <= 0 {
		c.StoppedThresholdDays = DefaultStoppedThresholdDays
	}
	if c.FindingsDays <= 0 {
		c.FindingsDays = DefaultFindingsDays
	}
	if c.BudgetUsagePercent <= 0 {
		c.BudgetUsagePercent = DefaultBudgetUsagePercent
	}
	if c.MinAnomalyImpact <= 0 {
		c.MinAnomalyImpact = DefaultMinAnomalyImpact
	}
	return c
}

// ExcludeConfig holds resource exclusion rules.
type ExcludeConfig struct {
	ResourceIDs map[string]bool
	Tags        map[string]string
}

// ShouldExclude reports whether a resource is excluded by id or by tag.
func (e ExcludeConfig) ShouldExclude(resourceID string, tags []finding.Tag) bool {
	if e.ResourceIDs[resourceID] {
		return true
	}
	return finding.MatchesExclude(tags, e.Tags)
}

// ResourceScanner is the interface each service scanner implements.
type ResourceScanner interface {
	Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error)
	Service() string
}

// ScanProgress reports scanning progress to callers.
type ScanProgress struct {
	Region    string
	Scanner   string
	Message   string
	Timestamp time.Time
}
