package aws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

// ELBAPI is the minimal interface for ELBv2 operations.
type ELBAPI interface {
	DescribeLoadBalancers(ctx context.Context, input *elasticloadbalancingv2.DescribeLoadBalancersInput, opts ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
	DescribeTargetGroups(ctx context.Context, input *elasticloadbalancingv2.DescribeTargetGroupsInput, opts ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error)
	DescribeTargetHealth(ctx context.Context, input *elasticloadbalancingv2.DescribeTargetHealthInput, opts ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
}

// ELBScanner detects application and network load balancers with no traffic.
type ELBScanner struct {
	client  ELBAPI
	metrics *MetricsFetcher
	region  string
}

// NewELBScanner creates a scanner for load balancers.
func NewELBScanner(client ELBAPI, metrics *MetricsFetcher, region string) *ELBScanner {
	return &ELBScanner{client: client, metrics: metrics, region: region}
}

// Service returns the findings tree key.
func (s *ELBScanner) Service() string {
	return ServiceLoadBalancers
}

// Scan flags load balancers without healthy targets or with zero traffic over IdleDays.
func (s *ELBScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	lbs, err := s.listLoadBalancers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list load balancers: %w", err)
	}

	result := &ScanResult{ResourcesScanned: len(lbs)}
	for _, lb := range lbs {
		arn := deref(lb.LoadBalancerArn)
		name := deref(lb.LoadBalancerName)
		if cfg.Exclude.ShouldExclude(arn, nil) {
			continue
		}

		healthy, err := s.hasHealthyTargets(ctx, arn)
		if err != nil {
			slog.Warn("Failed to check target health", "lb", name, "error", err)
			continue
		}

		reason := "no healthy targets"
		if healthy {
			idle, err := s.idleByTraffic(ctx, lb, cfg.IdleDays)
			if err != nil {
				slog.Warn("Failed to check load balancer traffic", "lb", name, "error", err)
				continue
			}
			if !idle {
				continue
			}
			reason = fmt.Sprintf("zero traffic over %d days", cfg.IdleDays)
		}

		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceLoadBalancers,
			Check:        CheckUnusedLoadBalancers,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityMedium,
			ResourceID:   arn,
			ResourceName: name,
			Region:       s.region,
			MonthlyCost:  finding.Amount(pricing.MonthlyLoadBalancerCost(string(lb.Type), s.region)),
			Issue:        fmt.Sprintf("Load balancer %q has %s", name, reason),
			Details: finding.FieldDetails(map[string]any{
				"lb_type": string(lb.Type),
				"scheme":  string(lb.Scheme),
				"vpc_id":  deref(lb.VpcId),
			}),
			Recommendation: "Delete the load balancer if it is no longer needed",
		})
	}

	return result, nil
}

func (s *ELBScanner) listLoadBalancers(ctx context.Context) ([]elbtypes.LoadBalancer, error) {
	var lbs []elbtypes.LoadBalancer
	var marker *string
	for {
		out, err := s.client.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		lbs = append(lbs, out.LoadBalancers...)
		if out.NextMarker == nil {
			return lbs, nil
		}
		marker = out.NextMarker
	}
}

func (s *ELBScanner) hasHealthyTargets(ctx context.Context, arn string) (bool, error) {
	tgs, err := s.client.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		LoadBalancerArn: &arn,
	})
	if err != nil {
		return false, err
	}

	for _, tg := range tgs.TargetGroups {
		if tg.TargetGroupArn == nil {
			continue
		}
		health, err := s.client.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
			TargetGroupArn: tg.TargetGroupArn,
		})
		if err != nil {
			continue
		}
		for _, d := range health.TargetHealthDescriptions {
			if d.TargetHealth != nil && d.TargetHealth.State == elbtypes.TargetHealthStateEnumHealthy {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *ELBScanner) idleByTraffic(ctx context.Context, lb elbtypes.LoadBalancer, idleDays int) (bool, error) {
	var q MetricQuery
	switch lb.Type {
	case elbtypes.LoadBalancerTypeEnumApplication:
		q = MetricQuery{Namespace: "AWS/ApplicationELB", Name: "RequestCount", Dimension: "LoadBalancer", Stat: StatSum}
	case elbtypes.LoadBalancerTypeEnumNetwork:
		q = MetricQuery{Namespace: "AWS/NetworkELB", Name: "ActiveFlowCount", Dimension: "LoadBalancer", Stat: StatSum}
	default:
		return false, nil
	}

	dim := lbDimension(deref(lb.LoadBalancerArn))
	if dim == "" {
		return false, nil
	}

	sums, err := s.metrics.Fetch(ctx, q, []string{dim}, idleDays)
	if err != nil {
		return false, err
	}
	// No datapoints means no traffic.
	return sums[dim] == 0, nil
}

// lbDimension turns
// arn:aws:elasticloadbalancing:us-east-1:123456:loadbalancer/app/my-lb/abc123
// into the CloudWatch dimension value app/my-lb/abc123.
func lbDimension(arn string) string {
	_, dim, ok := strings.Cut(arn, "loadbalancer/")
	if !ok {
		return ""
	}
	return dim
}
