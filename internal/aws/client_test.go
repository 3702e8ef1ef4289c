package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockSTSClient struct {
	account *string
	arn     *string
	err     error
}

func (m *mockSTSClient) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{Account: m.account, Arn: m.arn}, nil
}

type mockRegionsClient struct {
	regions []ec2types.Region
}

func (m *mockRegionsClient) DescribeRegions(_ context.Context, _ *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	return &ec2.DescribeRegionsOutput{Regions: m.regions}, nil
}

func TestCallerAccount(t *testing.T) {
	account, err := callerAccount(context.Background(), &mockSTSClient{account: awssdk.String("111111111111")})
	if err != nil || account != "111111111111" {
		t.Fatalf("expected account, got %q, %v", account, err)
	}
	if _, err := callerAccount(context.Background(), &mockSTSClient{}); err == nil {
		t.Fatal("expected error for empty account")
	}
	if _, err := callerAccount(context.Background(), &mockSTSClient{err: errors.New("expired")}); err == nil {
		t.Fatal("expected error from STS")
	}
}

func TestCallerIdentity(t *testing.T) {
	id, err := callerIdentity(context.Background(), &mockSTSClient{
		account: awssdk.String("111111111111"),
		arn:     awssdk.String("arn:aws:iam::111111111111:user/auditor"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Account != "111111111111" || id.ARN != "arn:aws:iam::111111111111:user/auditor" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestEnabledRegions(t *testing.T) {
	mock := &mockRegionsClient{regions: []ec2types.Region{
		{RegionName: awssdk.String("us-east-1")},
		{},
		{RegionName: awssdk.String("eu-west-1")},
	}}
	regions, err := enabledRegions(context.Background(), mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 2 || regions[0] != "us-east-1" || regions[1] != "eu-west-1" {
		t.Fatalf("unexpected regions %v", regions)
	}
}

func TestClient_ConfigForRegion(t *testing.T) {
	c := &Client{cfg: awssdk.Config{Region: "us-east-1"}}
	if got := c.ConfigForRegion("eu-west-1").Region; got != "eu-west-1" {
		t.Fatalf("expected eu-west-1, got %s", got)
	}
	if c.Config().Region != "us-east-1" {
		t.Fatal("expected the base config to be unchanged")
	}
}
