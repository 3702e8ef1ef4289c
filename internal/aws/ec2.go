package aws

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

var ec2CPU = MetricQuery{Namespace: "AWS/EC2", Name: "CPUUtilization", Dimension: "InstanceId", Stat: StatAverage}

// stopReasonTime matches the timestamp in "User initiated (2024-01-02 15:04:05 GMT)".
var stopReasonTime = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) GMT\)`)

// EC2API is the minimal interface for EC2 instance operations.
type EC2API interface {
	DescribeInstances(ctx context.Context, input *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Scanner detects idle and long-stopped EC2 instances.
type EC2Scanner struct {
	client  EC2API
	metrics *MetricsFetcher
	region  string
}

// NewEC2Scanner creates a scanner for EC2 instances.
func NewEC2Scanner(client EC2API, metrics *MetricsFetcher, region string) *EC2Scanner {
	return &EC2Scanner{client: client, metrics: metrics, region: region}
}

// Service returns the findings tree key.
func (s *EC2Scanner) Service() string {
	return ServiceEC2
}

// Scan examines running and stopped instances in the region.
func (s *EC2Scanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	instances, err := s.listInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list EC2 instances: %w", err)
	}

	result := &ScanResult{ResourcesScanned: len(instances)}
	now := time.Now().UTC()
	running := make(map[string]ec2types.Instance)
	var runningIDs []string

	for _, inst := range instances {
		id := deref(inst.InstanceId)
		tags := ec2Tags(inst.Tags)
		if cfg.Exclude.ShouldExclude(id, tags) || inst.State == nil {
			continue
		}

		switch inst.State.Name {
		case ec2types.InstanceStateNameRunning:
			running[id] = inst
			runningIDs = append(runningIDs, id)
		case ec2types.InstanceStateNameStopped:
			stoppedAt := stoppedSince(inst)
			if stoppedAt.IsZero() {
				continue
			}
			days := int(now.Sub(stoppedAt).Hours() / 24)
			if days < cfg.StoppedThresholdDays {
				continue
			}
			result.Findings = append(result.Findings, finding.Finding{
				AccountID:    cfg.AccountID,
				Service:      ServiceEC2,
				Check:        CheckStoppedInstances,
				Type:         finding.TypeCost,
				Severity:     finding.SeverityLow,
				ResourceID:   id,
				ResourceName: nameTag(tags, id),
				Region:       s.region,
				Issue:        fmt.Sprintf("EC2 instance stopped for %d days", days),
				Details: finding.FieldDetails(map[string]any{
					"instance_type": string(inst.InstanceType),
					"days_stopped":  days,
					"stopped_since": stoppedAt.Format(time.RFC3339),
				}),
				Recommendation: "Terminate the instance or create an AMI and remove it; attached EBS volumes are still billed",
				Tags:           tags,
			})
		}
	}

	if len(runningIDs) == 0 {
		return result, nil
	}

	cpu, err := s.metrics.Fetch(ctx, ec2CPU, runningIDs, cfg.IdleDays)
	if err != nil {
		slog.Warn("Failed to fetch EC2 CPU metrics", "region", s.region, "error", err)
		return result, nil
	}

	for _, id := range runningIDs {
		avg, ok := cpu[id]
		if !ok || avg >= cfg.IdleCPUThreshold {
			continue
		}
		inst := running[id]
		tags := ec2Tags(inst.Tags)
		instanceType := string(inst.InstanceType)
		cost := pricing.MonthlyEC2Cost(instanceType, s.region)
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceEC2,
			Check:        CheckIdleInstances,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityMedium,
			ResourceID:   id,
			ResourceName: nameTag(tags, id),
			Region:       s.region,
			MonthlyCost:  finding.Amount(cost),
			Issue:        fmt.Sprintf("Idle EC2 instance: CPU %.1f%% over %d days", avg, cfg.IdleDays),
			Details: finding.FieldDetails(map[string]any{
				"instance_type":   instanceType,
				"avg_cpu_percent": avg,
				"total_cost":      cost,
			}),
			Recommendation: "Stop or downsize the instance",
			Tags:           tags,
		})
	}

	return result, nil
}

func (s *EC2Scanner) listInstances(ctx context.Context) ([]ec2types.Instance, error) {
	var instances []ec2types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(s.client, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("instance-state-name"),
			Values: []string{"running", "stopped"},
		}},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, res := range page.Reservations {
			instances = append(instances, res.Instances...)
		}
	}
	return instances, nil
}

// stoppedSince reads the stop time from the state transition reason, falling
// back to the launch time.
func stoppedSince(inst ec2types.Instance) time.Time {
	if m := stopReasonTime.FindStringSubmatch(deref(inst.StateTransitionReason)); m != nil {
		if t, err := time.Parse("2006-01-02 15:04:05", m[1]); err == nil {
			return t
		}
	}
	if inst.LaunchTime != nil {
		return *inst.LaunchTime
	}
	return time.Time{}
}
