package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

// EIPAPI is the minimal interface for Elastic IP operations.
type EIPAPI interface {
	DescribeAddresses(ctx context.Context, input *ec2.DescribeAddressesInput, opts ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
}

// EIPScanner detects Elastic IPs without an association.
type EIPScanner struct {
	client EIPAPI
	region string
}

// NewEIPScanner creates a scanner for Elastic IPs.
func NewEIPScanner(client EIPAPI, region string) *EIPScanner {
	return &EIPScanner{client: client, region: region}
}

// Service returns the findings tree key.
func (s *EIPScanner) Service() string {
	return ServiceEIP
}

// Scan reports addresses with no association id.
func (s *EIPScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	out, err := s.client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe addresses: %w", err)
	}

	result := &ScanResult{ResourcesScanned: len(out.Addresses)}
	for _, addr := range out.Addresses {
		id := deref(addr.AllocationId)
		tags := ec2Tags(addr.Tags)
		if addr.AssociationId != nil || cfg.Exclude.ShouldExclude(id, tags) {
			continue
		}

		ip := deref(addr.PublicIp)
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:      cfg.AccountID,
			Service:        ServiceEIP,
			Check:          CheckUnattachedEIPs,
			Type:           finding.TypeCost,
			Severity:       finding.SeverityLow,
			ResourceID:     id,
			ResourceName:   nameTag(tags, ip),
			Region:         s.region,
			MonthlySavings: finding.Amount(pricing.MonthlyEIPCost(s.region)),
			Issue:          fmt.Sprintf("Elastic IP %s is not associated", ip),
			Details: finding.FieldDetails(map[string]any{
				"public_ip": ip,
				"domain":    string(addr.Domain),
			}),
			Recommendation: "Release the Elastic IP",
			Tags:           tags,
		})
	}

	return result, nil
}
