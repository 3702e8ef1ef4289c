package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	initConfigPath = ".alertspectre.yaml"
	initPolicyPath = "alertspectre-policy.json"
)

var initFlags struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate sample config and IAM policy",
	Long: `Creates a sample .alertspectre.yaml config file and a read-only IAM policy
covering the resource, GuardDuty, Cost Explorer and Budgets APIs the scan uses.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, _ []string) error {
	return writeInitFiles(cmd.OutOrStdout(), ".", initFlags.force)
}

func writeInitFiles(out io.Writer, dir string, force bool) error {
	configPath := filepath.Join(dir, initConfigPath)
	policyPath := filepath.Join(dir, initPolicyPath)

	if err := writeIfNotExists(configPath, sampleConfig, force); err != nil {
		return err
	}
	if err := writeIfNotExists(policyPath, sampleIAMPolicy, force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %s and %s\n", configPath, policyPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to tune thresholds and exclusions\n", initConfigPath)
	fmt.Fprintf(out, "  2. Apply %s to your AWS IAM role/user\n", initPolicyPath)
	fmt.Fprintln(out, "  3. Run: alertspectre scan")
	return nil
}

func writeIfNotExists(path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

const sampleConfig = `# alertspectre configuration
# See: https://github.com/ppiankov/alertspectre

# AWS profile (or set AWS_PROFILE env var)
# profile: default

# Regions to scan (default: all enabled regions)
# regions:
#   - us-east-1
#   - eu-west-1

# Resource checks
idle_days: 7
stale_days: 90
# idle_cpu_threshold: 5.0
# stopped_threshold_days: 30

# GuardDuty findings lookback (days)
findings_days: 30

# Drop alerts with a smaller monthly cost impact ($)
# min_monthly_cost: 0

# Report output: text, json, sarif, spectrehub
format: text

# Log output: text or json
# log_format: text

timeout: 10m

thresholds:
  # Cost findings above this monthly amount become cost_spike alerts
  cost_spike: 100
  # Alerts above this monthly amount count as high-cost in recommendations
  high_cost: 50
  # Budget usage percentage that triggers a budget alert
  budget_usage_percent: 80
  # Smallest cost anomaly impact reported ($)
  min_anomaly_impact: 10

# Resources to exclude from scanning
# exclude:
#   resource_ids:
#     - i-0abc123
#   tags:
#     - "Environment=production"
#     - "alertspectre:ignore"
`

const sampleIAMPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "AlertSpectreResources",
      "Effect": "Allow",
      "Action": [
        "ec2:DescribeInstances",
        "ec2:DescribeVolumes",
        "ec2:DescribeAddresses",
        "ec2:DescribeNatGateways",
        "ec2:DescribeSecurityGroups",
        "ec2:DescribeNetworkInterfaces",
        "ec2:DescribeSnapshots",
        "ec2:DescribeImages",
        "ec2:DescribeRegions",
        "elasticloadbalancing:DescribeLoadBalancers",
        "elasticloadbalancing:DescribeTargetGroups",
        "elasticloadbalancing:DescribeTargetHealth",
        "rds:DescribeDBInstances",
        "cloudwatch:GetMetricData",
        "sts:GetCallerIdentity"
      ],
      "Resource": "*"
    },
    {
      "Sid": "AlertSpectreSecurity",
      "Effect": "Allow",
      "Action": [
        "guardduty:ListDetectors",
        "guardduty:GetDetector",
        "guardduty:ListFindings",
        "guardduty:GetFindings"
      ],
      "Resource": "*"
    },
    {
      "Sid": "AlertSpectreBilling",
      "Effect": "Allow",
      "Action": [
        "ce:GetCostAndUsage",
        "ce:GetAnomalyMonitors",
        "ce:GetAnomalies",
        "budgets:ViewBudget"
      ],
      "Resource": "*"
    }
  ]
}
`
