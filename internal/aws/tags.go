package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/ppiankov/alertspectre/internal/finding"
)

func ec2Tags(tags []ec2types.Tag) []finding.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]finding.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, finding.Tag{Key: awssdk.ToString(t.Key), Value: awssdk.ToString(t.Value)})
	}
	return out
}

func rdsTags(tags []rdstypes.Tag) []finding.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]finding.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, finding.Tag{Key: awssdk.ToString(t.Key), Value: awssdk.ToString(t.Value)})
	}
	return out
}

// nameTag returns the Name tag value, or fallback.
func nameTag(tags []finding.Tag, fallback string) string {
	if v, ok := finding.TagValue(tags, "Name"); ok && v != "" {
		return v
	}
	return fallback
}

func deref(s *string) string {
	return awssdk.ToString(s)
}

func derefInt32(v *int32) int32 {
	return awssdk.ToInt32(v)
}
