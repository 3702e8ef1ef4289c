package aws

import (
	"context"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

var (
	rdsCPU         = MetricQuery{Namespace: "AWS/RDS", Name: "CPUUtilization", Dimension: "DBInstanceIdentifier", Stat: StatAverage}
	rdsConnections = MetricQuery{Namespace: "AWS/RDS", Name: "DatabaseConnections", Dimension: "DBInstanceIdentifier", Stat: StatSum}
)

// RDSAPI is the minimal interface for RDS operations.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, input *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// RDSScanner detects idle RDS instances.
type RDSScanner struct {
	client  RDSAPI
	metrics *MetricsFetcher
	region  string
}

// NewRDSScanner creates a scanner for RDS instances.
func NewRDSScanner(client RDSAPI, metrics *MetricsFetcher, region string) *RDSScanner {
	return &RDSScanner{client: client, metrics: metrics, region: region}
}

// Service returns the findings tree key.
func (s *RDSScanner) Service() string {
	return ServiceRDS
}

// Scan flags available instances with low CPU or no connections over IdleDays.
func (s *RDSScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	var instances []rdstypes.DBInstance
	paginator := rds.NewDescribeDBInstancesPaginator(s.client, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list RDS instances: %w", err)
		}
		instances = append(instances, page.DBInstances...)
	}

	result := &ScanResult{ResourcesScanned: len(instances)}
	var ids []string
	byID := make(map[string]rdstypes.DBInstance, len(instances))
	for _, inst := range instances {
		id := deref(inst.DBInstanceIdentifier)
		if deref(inst.DBInstanceStatus) != "available" || cfg.Exclude.ShouldExclude(id, rdsTags(inst.TagList)) {
			continue
		}
		ids = append(ids, id)
		byID[id] = inst
	}
	if len(ids) == 0 {
		return result, nil
	}

	cpu, err := s.metrics.Fetch(ctx, rdsCPU, ids, cfg.IdleDays)
	if err != nil {
		slog.Warn("Failed to fetch RDS CPU metrics", "region", s.region, "error", err)
		return result, nil
	}
	conns, err := s.metrics.Fetch(ctx, rdsConnections, ids, cfg.IdleDays)
	if err != nil {
		slog.Warn("Failed to fetch RDS connection metrics", "region", s.region, "error", err)
		conns = nil
	}

	for _, id := range ids {
		avgCPU, hasCPU := cpu[id]
		total, hasConns := conns[id]
		lowCPU := hasCPU && avgCPU < cfg.IdleCPUThreshold
		noConns := conns != nil && (!hasConns || total == 0)
		if !lowCPU && !noConns {
			continue
		}

		inst := byID[id]
		class := deref(inst.DBInstanceClass)
		multiAZ := awssdk.ToBool(inst.MultiAZ)
		cost := pricing.MonthlyRDSCost(class, s.region, multiAZ)

		issue := fmt.Sprintf("Idle RDS instance: CPU %.1f%% over %d days", avgCPU, cfg.IdleDays)
		if noConns {
			issue = fmt.Sprintf("Idle RDS instance: zero connections over %d days", cfg.IdleDays)
		}

		tags := rdsTags(inst.TagList)
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceRDS,
			Check:        CheckIdleDatabases,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityMedium,
			ResourceID:   id,
			ResourceName: id,
			Region:       s.region,
			MonthlyCost:  finding.Amount(cost),
			Issue:        issue,
			Details: finding.FieldDetails(map[string]any{
				"instance_class":    class,
				"engine":            deref(inst.Engine),
				"multi_az":          multiAZ,
				"avg_cpu_percent":   avgCPU,
				"total_connections": total,
				"total_cost":        cost,
			}),
			Recommendation: "Stop the instance, take a final snapshot and delete it, or downsize the instance class",
			Tags:           tags,
		})
	}

	return result, nil
}
