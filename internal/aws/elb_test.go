package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

type mockELBClient struct {
	lbs     []elbtypes.LoadBalancer
	groups  map[string][]elbtypes.TargetGroup
	healthy map[string]bool
}

func (m *mockELBClient) DescribeLoadBalancers(_ context.Context, _ *elasticloadbalancingv2.DescribeLoadBalancersInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	return &elasticloadbalancingv2.DescribeLoadBalancersOutput{LoadBalancers: m.lbs}, nil
}

func (m *mockELBClient) DescribeTargetGroups(_ context.Context, input *elasticloadbalancingv2.DescribeTargetGroupsInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error) {
	return &elasticloadbalancingv2.DescribeTargetGroupsOutput{TargetGroups: m.groups[awssdk.ToString(input.LoadBalancerArn)]}, nil
}

func (m *mockELBClient) DescribeTargetHealth(_ context.Context, input *elasticloadbalancingv2.DescribeTargetHealthInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error) {
	state := elbtypes.TargetHealthStateEnumUnhealthy
	if m.healthy[awssdk.ToString(input.TargetGroupArn)] {
		state = elbtypes.TargetHealthStateEnumHealthy
	}
	return &elasticloadbalancingv2.DescribeTargetHealthOutput{
		TargetHealthDescriptions: []elbtypes.TargetHealthDescription{{TargetHealth: &elbtypes.TargetHealth{State: state}}},
	}, nil
}

const (
	albARN = "arn:aws:elasticloadbalancing:us-east-1:111111111111:loadbalancer/app/web/abc"
	nlbARN = "arn:aws:elasticloadbalancing:us-east-1:111111111111:loadbalancer/net/tcp/def"
)

func TestELBScanner(t *testing.T) {
	tests := []struct {
		name     string
		lbType   elbtypes.LoadBalancerTypeEnum
		arn      string
		healthy  bool
		requests []float64
		want     bool
	}{
		{name: "ALB without healthy targets", lbType: elbtypes.LoadBalancerTypeEnumApplication, arn: albARN, want: true},
		{name: "NLB without healthy targets", lbType: elbtypes.LoadBalancerTypeEnumNetwork, arn: nlbARN, want: true},
		{name: "healthy ALB with traffic", lbType: elbtypes.LoadBalancerTypeEnumApplication, arn: albARN, healthy: true, requests: []float64{5, 10}},
		{name: "healthy ALB without traffic", lbType: elbtypes.LoadBalancerTypeEnumApplication, arn: albARN, healthy: true, want: true},
		{name: "healthy ALB with zero requests", lbType: elbtypes.LoadBalancerTypeEnumApplication, arn: albARN, healthy: true, requests: []float64{0}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgARN := tt.arn + "-tg"
			mock := &mockELBClient{
				lbs: []elbtypes.LoadBalancer{{
					LoadBalancerArn:  awssdk.String(tt.arn),
					LoadBalancerName: awssdk.String("lb"),
					Type:             tt.lbType,
				}},
				groups:  map[string][]elbtypes.TargetGroup{tt.arn: {{TargetGroupArn: awssdk.String(tgARN)}}},
				healthy: map[string]bool{tgARN: tt.healthy},
			}
			traffic := map[string][]float64{}
			if tt.requests != nil {
				traffic[lbDimension(tt.arn)] = tt.requests
			}
			metrics := newMockMetricsFetcher(map[string]map[string][]float64{
				"RequestCount":    traffic,
				"ActiveFlowCount": traffic,
			})

			result, err := NewELBScanner(mock, metrics, "us-east-1").Scan(context.Background(), ScanConfig{}.WithDefaults())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(result.Findings) == 1; got != tt.want {
				t.Fatalf("expected flagged=%v, got %d findings", tt.want, len(result.Findings))
			}
			if tt.want {
				f := result.Findings[0]
				if f.Check != CheckUnusedLoadBalancers || f.ResourceID != tt.arn {
					t.Fatalf("unexpected finding %s/%s", f.Check, f.ResourceID)
				}
				if f.MonthlyCost == nil || *f.MonthlyCost <= 0 {
					t.Fatal("expected a monthly cost estimate")
				}
			}
		})
	}
}

func TestLBDimension(t *testing.T) {
	if got := lbDimension(albARN); got != "app/web/abc" {
		t.Fatalf("expected app/web/abc, got %q", got)
	}
	if got := lbDimension("not-an-arn"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
