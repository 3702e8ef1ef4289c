package aws

import (
	"context"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

var (
	natBytesOut = MetricQuery{Namespace: "AWS/NATGateway", Name: "BytesOutToDestination", Dimension: "NatGatewayId", Stat: StatSum}
	natBytesIn  = MetricQuery{Namespace: "AWS/NATGateway", Name: "BytesInFromDestination", Dimension: "NatGatewayId", Stat: StatSum}
)

// NATGatewayAPI is the minimal interface for NAT Gateway operations.
type NATGatewayAPI interface {
	DescribeNatGateways(ctx context.Context, input *ec2.DescribeNatGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
}

// NATGatewayScanner detects NAT Gateways with zero bytes processed.
type NATGatewayScanner struct {
	client  NATGatewayAPI
	metrics *MetricsFetcher
	region  string
}

// NewNATGatewayScanner creates a scanner for NAT Gateways.
func NewNATGatewayScanner(client NATGatewayAPI, metrics *MetricsFetcher, region string) *NATGatewayScanner {
	return &NATGatewayScanner{client: client, metrics: metrics, region: region}
}

// Service returns the findings tree key.
func (s *NATGatewayScanner) Service() string {
	return ServiceNATGateways
}

// Scan reports available gateways that moved no bytes over IdleDays.
func (s *NATGatewayScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	var gateways []ec2types.NatGateway
	paginator := ec2.NewDescribeNatGatewaysPaginator(s.client, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{{Name: awssdk.String("state"), Values: []string{"available"}}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list NAT Gateways: %w", err)
		}
		gateways = append(gateways, page.NatGateways...)
	}

	result := &ScanResult{ResourcesScanned: len(gateways)}
	var ids []string
	byID := make(map[string]ec2types.NatGateway, len(gateways))
	for _, gw := range gateways {
		id := deref(gw.NatGatewayId)
		if cfg.Exclude.ShouldExclude(id, ec2Tags(gw.Tags)) {
			continue
		}
		ids = append(ids, id)
		byID[id] = gw
	}
	if len(ids) == 0 {
		return result, nil
	}

	out, err := s.metrics.Fetch(ctx, natBytesOut, ids, cfg.IdleDays)
	if err != nil {
		slog.Warn("Failed to fetch NAT Gateway metrics", "region", s.region, "error", err)
		return result, nil
	}
	in, err := s.metrics.Fetch(ctx, natBytesIn, ids, cfg.IdleDays)
	if err != nil {
		slog.Warn("Failed to fetch NAT Gateway inbound metrics", "region", s.region, "error", err)
		in = map[string]float64{}
	}

	for _, id := range ids {
		if out[id]+in[id] > 0 {
			continue
		}
		gw := byID[id]
		tags := ec2Tags(gw.Tags)
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceNATGateways,
			Check:        CheckUnusedGateways,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityMedium,
			ResourceID:   id,
			ResourceName: nameTag(tags, id),
			Region:       s.region,
			MonthlyCost:  finding.Amount(pricing.MonthlyNATGatewayCost(s.region)),
			Issue:        fmt.Sprintf("NAT Gateway processed zero bytes over %d days", cfg.IdleDays),
			Details: finding.FieldDetails(map[string]any{
				"subnet_id":        deref(gw.SubnetId),
				"vpc_id":           deref(gw.VpcId),
				"data_cost_per_gb": pricing.NATGatewayDataCostPerGB(s.region),
			}),
			Recommendation: "Delete the NAT Gateway and its Elastic IP",
			Tags:           tags,
		})
	}

	return result, nil
}
