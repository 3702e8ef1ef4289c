package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

// orphanGraceDays skips volumes created too recently to be considered orphaned.
const orphanGraceDays = 7

// EBSAPI is the minimal interface for EBS volume operations.
type EBSAPI interface {
	DescribeVolumes(ctx context.Context, input *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
}

// EBSScanner detects volumes not attached to any instance.
type EBSScanner struct {
	client EBSAPI
	region string
}

// NewEBSScanner creates a scanner for EBS volumes.
func NewEBSScanner(client EBSAPI, region string) *EBSScanner {
	return &EBSScanner{client: client, region: region}
}

// Service returns the findings tree key.
func (s *EBSScanner) Service() string {
	return ServiceEBS
}

// Scan reports available (unattached) volumes older than the grace period.
func (s *EBSScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	var volumes []ec2types.Volume
	paginator := ec2.NewDescribeVolumesPaginator(s.client, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{{Name: awssdk.String("status"), Values: []string{"available"}}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list EBS volumes: %w", err)
		}
		volumes = append(volumes, page.Volumes...)
	}

	result := &ScanResult{ResourcesScanned: len(volumes)}
	now := time.Now().UTC()

	for _, vol := range volumes {
		id := deref(vol.VolumeId)
		tags := ec2Tags(vol.Tags)
		if cfg.Exclude.ShouldExclude(id, tags) || vol.CreateTime == nil {
			continue
		}
		age := int(now.Sub(*vol.CreateTime).Hours() / 24)
		if age < orphanGraceDays {
			continue
		}

		volumeType := string(vol.VolumeType)
		size := int(derefInt32(vol.Size))
		cost := pricing.MonthlyEBSCost(volumeType, size, s.region)
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceEBS,
			Check:        CheckOrphanVolumes,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityMedium,
			ResourceID:   id,
			ResourceName: nameTag(tags, id),
			Region:       s.region,
			MonthlyCost:  finding.Amount(cost),
			Issue:        fmt.Sprintf("Unattached EBS volume (%s, %d GiB)", volumeType, size),
			Details: finding.FieldDetails(map[string]any{
				"volume_type":       volumeType,
				"size_gib":          size,
				"age_days":          age,
				"availability_zone": deref(vol.AvailabilityZone),
			}),
			Recommendation: "Snapshot the volume if needed, then delete it",
			Tags:           tags,
		})
	}

	return result, nil
}
