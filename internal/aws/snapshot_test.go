package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type mockSnapshotClient struct {
	snapshots []ec2types.Snapshot
	images    []ec2types.Image
	imagesErr error
}

func (m *mockSnapshotClient) DescribeSnapshots(_ context.Context, _ *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	return &ec2.DescribeSnapshotsOutput{Snapshots: m.snapshots}, nil
}

func (m *mockSnapshotClient) DescribeImages(_ context.Context, _ *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if m.imagesErr != nil {
		return nil, m.imagesErr
	}
	return &ec2.DescribeImagesOutput{Images: m.images}, nil
}

func snapshot(id string, ageDays int) ec2types.Snapshot {
	started := time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour)
	return ec2types.Snapshot{
		SnapshotId: awssdk.String(id),
		VolumeId:   awssdk.String("vol-1"),
		VolumeSize: awssdk.Int32(50),
		StartTime:  &started,
	}
}

func TestSnapshotScanner(t *testing.T) {
	tests := []struct {
		name      string
		client    *mockSnapshotClient
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "old snapshot flagged",
			client:    &mockSnapshotClient{snapshots: []ec2types.Snapshot{snapshot("snap-old", 200)}},
			wantIDs:   []string{"snap-old"},
			wantTotal: 1,
		},
		{
			name:      "recent snapshot kept",
			client:    &mockSnapshotClient{snapshots: []ec2types.Snapshot{snapshot("snap-new", 10)}},
			wantTotal: 1,
		},
		{
			name: "AMI-referenced snapshot kept",
			client: &mockSnapshotClient{
				snapshots: []ec2types.Snapshot{snapshot("snap-ami", 200)},
				images: []ec2types.Image{{BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
					Ebs: &ec2types.EbsBlockDevice{SnapshotId: awssdk.String("snap-ami")},
				}}}},
			},
			wantTotal: 1,
		},
		{
			name: "AMI lookup failure reports all old snapshots",
			client: &mockSnapshotClient{
				snapshots: []ec2types.Snapshot{snapshot("snap-old", 200)},
				imagesErr: errors.New("denied"),
			},
			wantIDs:   []string{"snap-old"},
			wantTotal: 1,
		},
		{
			name:   "no snapshots",
			client: &mockSnapshotClient{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewSnapshotScanner(tt.client, "us-east-1").Scan(context.Background(), ScanConfig{}.WithDefaults())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.ResourcesScanned != tt.wantTotal {
				t.Fatalf("expected %d scanned, got %d", tt.wantTotal, result.ResourcesScanned)
			}
			if len(result.Findings) != len(tt.wantIDs) {
				t.Fatalf("expected %d findings, got %d", len(tt.wantIDs), len(result.Findings))
			}
			for i, id := range tt.wantIDs {
				if result.Findings[i].ResourceID != id {
					t.Fatalf("finding %d: expected %s, got %s", i, id, result.Findings[i].ResourceID)
				}
				if result.Findings[i].Check != CheckOldSnapshots {
					t.Fatalf("finding %d: unexpected check %s", i, result.Findings[i].Check)
				}
			}
		})
	}
}
