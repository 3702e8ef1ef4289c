package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ppiankov/alertspectre/internal/finding"
)

// publicPorts may be open to the world without a finding.
var publicPorts = map[int32]bool{80: true, 443: true}

// SecurityGroupAPI is the minimal interface for security group operations.
type SecurityGroupAPI interface {
	DescribeSecurityGroups(ctx context.Context, input *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DescribeNetworkInterfaces(ctx context.Context, input *ec2.DescribeNetworkInterfacesInput, opts ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
}

// SecurityGroupScanner detects unused security groups and ingress open to the internet.
type SecurityGroupScanner struct {
	client SecurityGroupAPI
	region string
}

// NewSecurityGroupScanner creates a scanner for security groups.
func NewSecurityGroupScanner(client SecurityGroupAPI, region string) *SecurityGroupScanner {
	return &SecurityGroupScanner{client: client, region: region}
}

// Service returns the findings tree key.
func (s *SecurityGroupScanner) Service() string {
	return ServiceSecurityGroups
}

// Scan examines all security groups in the region.
func (s *SecurityGroupScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	groups, err := s.listSecurityGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list security groups: %w", err)
	}

	result := &ScanResult{ResourcesScanned: len(groups)}
	if len(groups) == 0 {
		return result, nil
	}

	used, err := s.attachedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("find used security groups: %w", err)
	}
	// Groups referenced by another group's rules count as in use.
	for _, sg := range groups {
		for _, perms := range [][]ec2types.IpPermission{sg.IpPermissions, sg.IpPermissionsEgress} {
			for _, perm := range perms {
				for _, pair := range perm.UserIdGroupPairs {
					if pair.GroupId != nil {
						used[*pair.GroupId] = true
					}
				}
			}
		}
	}

	for _, sg := range groups {
		id := deref(sg.GroupId)
		name := deref(sg.GroupName)
		tags := ec2Tags(sg.Tags)
		if cfg.Exclude.ShouldExclude(id, tags) {
			continue
		}

		if open := openIngress(sg.IpPermissions); len(open) > 0 {
			severity := finding.SeverityHigh
			for _, r := range open {
				if r.allTraffic {
					severity = finding.SeverityCritical
				}
			}
			result.Findings = append(result.Findings, finding.Finding{
				AccountID:    cfg.AccountID,
				Service:      ServiceSecurityGroups,
				Check:        CheckOverlyPermissive,
				Type:         finding.TypeSecurity,
				Severity:     severity,
				ResourceID:   id,
				ResourceName: name,
				Region:       s.region,
				Issue:        fmt.Sprintf("Security group %q allows ingress from the internet on %s", name, describeRanges(open)),
				Details: finding.FieldDetails(map[string]any{
					"group_name": name,
					"vpc_id":     deref(sg.VpcId),
					"open_ports": describeRanges(open),
				}),
				Recommendation: "Restrict ingress to known CIDR ranges or use a bastion or VPN",
				Tags:           tags,
			})
		}

		// Default groups cannot be deleted.
		if name == "default" || used[id] {
			continue
		}
		result.Findings = append(result.Findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceSecurityGroups,
			Check:        CheckUnusedGroups,
			Type:         finding.TypeCost,
			Severity:     finding.SeverityLow,
			ResourceID:   id,
			ResourceName: name,
			Region:       s.region,
			Issue:        fmt.Sprintf("Security group %q has no attached network interfaces", name),
			Details: finding.FieldDetails(map[string]any{
				"group_name": name,
				"vpc_id":     deref(sg.VpcId),
			}),
			Recommendation: "Delete the unused security group",
			Tags:           tags,
		})
	}

	return result, nil
}

func (s *SecurityGroupScanner) listSecurityGroups(ctx context.Context) ([]ec2types.SecurityGroup, error) {
	var groups []ec2types.SecurityGroup
	paginator := ec2.NewDescribeSecurityGroupsPaginator(s.client, &ec2.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		groups = append(groups, page.SecurityGroups...)
	}
	return groups, nil
}

func (s *SecurityGroupScanner) attachedGroups(ctx context.Context) (map[string]bool, error) {
	used := make(map[string]bool)
	paginator := ec2.NewDescribeNetworkInterfacesPaginator(s.client, &ec2.DescribeNetworkInterfacesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, eni := range page.NetworkInterfaces {
			for _, g := range eni.Groups {
				if g.GroupId != nil {
					used[*g.GroupId] = true
				}
			}
		}
	}
	return used, nil
}

type portRange struct {
	from, to   int32
	allTraffic bool
}

// openIngress returns the world-open rules, ignoring HTTP and HTTPS.
func openIngress(perms []ec2types.IpPermission) []portRange {
	var open []portRange
	for _, perm := range perms {
		if !worldOpen(perm) {
			continue
		}
		if deref(perm.IpProtocol) == "-1" {
			open = append(open, portRange{allTraffic: true})
			continue
		}
		from, to := derefInt32(perm.FromPort), derefInt32(perm.ToPort)
		if from == to && publicPorts[from] {
			continue
		}
		open = append(open, portRange{from: from, to: to})
	}
	return open
}

func worldOpen(perm ec2types.IpPermission) bool {
	for _, r := range perm.IpRanges {
		if deref(r.CidrIp) == "0.0.0.0/0" {
			return true
		}
	}
	for _, r := range perm.Ipv6Ranges {
		if deref(r.CidrIpv6) == "::/0" {
			return true
		}
	}
	return false
}

func describeRanges(ranges []portRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		switch {
		case r.allTraffic:
			parts = append(parts, "all ports")
		case r.from == r.to:
			parts = append(parts, fmt.Sprintf("port %d", r.from))
		default:
			parts = append(parts, fmt.Sprintf("ports %d-%d", r.from, r.to))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
