package aws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

// SnapshotAPI is the minimal interface for snapshot and AMI operations.
type SnapshotAPI interface {
	DescribeSnapshots(ctx context.Context, input *ec2.DescribeSnapshotsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	DescribeImages(ctx context.Context, input *ec2.DescribeImagesInput, opts ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// SnapshotScanner detects old self-owned snapshots that no AMI references.
type SnapshotScanner struct {
	client SnapshotAPI
	region string
}

// NewSnapshotScanner creates a scanner for EBS snapshots.
func NewSnapshotScanner(client SnapshotAPI, region string) *SnapshotScanner {
	return &SnapshotScanner{client: client, region: region}
}

// Service returns the findings tree key.
func (s *SnapshotScanner) Service() string {
	return ServiceSnapshots
}

// Scan reports snapshots older than StaleDays.
func (s *SnapshotScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	var snapshots []ec2types.Snapshot
	paginator := ec2.NewDescribeSnapshotsPaginator(s.client, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		snapshots = append(snapshots, page.Snapshots...)
	}

	result := &ScanResult{ResourcesScanned: len(snapshots)}
	if len(snapshots) == 0 {
		return result, nil
	}

	referenced, err := s.imageSnapshots(ctx)
	if err != nil {
		slog.Warn("Failed to list AMIs, reporting all old snapshots", "region", s.region, "error", err)
		referenced = map[string]bool{}
	}

	now := time.Now().UTC()
	for _, snap := range snapshots {
		id := deref(snap.SnapshotId)
		tags := ec2Tags(snap.Tags)
		if cfg.Exclude.ShouldExclude(id, tags) || referenced[id] || snap.StartTime == nil {
			continue
		}
		age := int(now.Sub(*snap.StartTime).Hours() / 24)
		if age < cfg.StaleDays {
			continue
		}

		size := int(derefInt32(snap.VolumeSize))
		name := nameTag(tags, deref(snap.Description))
		if name == "" {
			name = id
		}
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:      cfg.AccountID,
			Service:        ServiceSnapshots,
			Check:          CheckOldSnapshots,
			Type:           finding.TypeCost,
			Severity:       finding.SeverityLow,
			ResourceID:     id,
			ResourceName:   name,
			Region:         s.region,
			MonthlySavings: finding.Amount(pricing.MonthlySnapshotCost(size, s.region)),
			Issue:          fmt.Sprintf("Snapshot is %d days old and not used by any AMI", age),
			Details: finding.FieldDetails(map[string]any{
				"age_days":  age,
				"size_gib":  size,
				"volume_id": deref(snap.VolumeId),
			}),
			Recommendation: "Delete the snapshot or move it to the archive tier",
			Tags:           tags,
		})
	}

	return result, nil
}

func (s *SnapshotScanner) imageSnapshots(ctx context.Context) (map[string]bool, error) {
	out, err := s.client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners:  []string{"self"},
		Filters: []ec2types.Filter{{Name: awssdk.String("state"), Values: []string{"available"}}},
	})
	if err != nil {
		return nil, err
	}

	refs := make(map[string]bool)
	for _, img := range out.Images {
		for _, m := range img.BlockDeviceMappings {
			if m.Ebs != nil && m.Ebs.SnapshotId != nil {
				refs[*m.Ebs.SnapshotId] = true
			}
		}
	}
	return refs, nil
}
