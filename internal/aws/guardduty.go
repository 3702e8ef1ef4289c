package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/aws/smithy-go"
	"github.com/ppiankov/alertspectre/internal/finding"
	"github.com/ppiankov/alertspectre/internal/pricing"
)

const (
	guardDutyCritical  = 9.0
	guardDutyHigh      = 7.0
	guardDutyMedium    = 4.0
	maxGuardDutyResult = 50
)

// guardDutyActions maps finding type prefixes to remediation advice.
var guardDutyActions = []struct {
	prefix string
	action string
}{
	{"Backdoor:EC2", "URGENT: EC2 instance may be compromised and acting as a command and control server. Isolate the instance, investigate network traffic and terminate it if confirmed malicious."},
	{"Behavior:EC2", "EC2 instance is behaving abnormally. Review CloudTrail logs for unauthorized API calls and verify legitimate usage patterns."},
	{"CryptoCurrency:EC2", "EC2 instance may be mining cryptocurrency. Stop the instance, investigate running processes and secure the environment."},
	{"Pentest:IAM", "IAM credentials are being used by penetration testing tools. If unauthorized, rotate the credentials immediately and review IAM permissions."},
	{"Persistence:IAM", "An attacker may be trying to maintain access. Review IAM user and role activity, rotate credentials and enable MFA."},
	{"Policy:IAM", "IAM entity has suspicious permissions. Restrict them to least privilege."},
	{"PrivilegeEscalation:IAM", "IAM entity is attempting privilege escalation. Revoke excessive permissions and investigate the activity."},
	{"Recon:IAM", "IAM credentials were used for reconnaissance, which may indicate account compromise. Rotate credentials and review recent API calls."},
	{"ResourceConsumption:IAM", "Unusual resource usage detected. Review usage patterns for account compromise or misconfiguration."},
	{"Stealth:IAM", "CloudTrail logging was disabled or modified. Re-enable CloudTrail immediately and find out who made the change."},
	{"Trojan:EC2", "EC2 instance may be running malware. Isolate it, snapshot it for forensics and launch a clean replacement."},
	{"UnauthorizedAccess:EC2", "Unauthorized access to an EC2 instance detected. Review security groups, rotate SSH keys and check for unknown users."},
	{"UnauthorizedAccess:IAM", "Suspicious login activity detected. Enable MFA, rotate credentials and review recent account activity."},
	{"Exfiltration:S3", "Data may be leaving S3. Review bucket policies, enable S3 access logging and investigate suspicious downloads."},
	{"Impact:EC2", "EC2 instance is involved in denial of service or similar activity. Isolate it and investigate traffic patterns."},
}

// GuardDutyAPI is the minimal interface for GuardDuty operations.
type GuardDutyAPI interface {
	ListDetectors(ctx context.Context, input *guardduty.ListDetectorsInput, opts ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, input *guardduty.GetDetectorInput, opts ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
	ListFindings(ctx context.Context, input *guardduty.ListFindingsInput, opts ...func(*guardduty.Options)) (*guardduty.ListFindingsOutput, error)
	GetFindings(ctx context.Context, input *guardduty.GetFindingsInput, opts ...func(*guardduty.Options)) (*guardduty.GetFindingsOutput, error)
}

// GuardDutyScanner reports detector status and recent high-severity threat findings.
type GuardDutyScanner struct {
	client GuardDutyAPI
	region string
	now    func() time.Time
}

// NewGuardDutyScanner creates a scanner for GuardDuty.
func NewGuardDutyScanner(client GuardDutyAPI, region string) *GuardDutyScanner {
	return &GuardDutyScanner{client: client, region: region, now: time.Now}
}

// Service returns the findings tree key.
func (s *GuardDutyScanner) Service() string {
	return ServiceGuardDuty
}

// Scan checks every detector in the region and pulls its findings of score 7 or more
// updated within FindingsDays.
func (s *GuardDutyScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	out, err := s.client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		if accessDenied(err) {
			return &ScanResult{Findings: []finding.Finding{s.accessFinding(cfg)}}, nil
		}
		return nil, fmt.Errorf("list GuardDuty detectors: %w", err)
	}

	result := &ScanResult{ResourcesScanned: len(out.DetectorIds)}
	if len(out.DetectorIds) == 0 {
		result.Findings = append(result.Findings, s.notEnabledFinding(cfg))
		return result, nil
	}

	for _, id := range out.DetectorIds {
		det, err := s.client.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: awssdk.String(id)})
		if err != nil {
			if accessDenied(err) {
				result.Findings = append(result.Findings, s.accessFinding(cfg))
				return result, nil
			}
			return nil, fmt.Errorf("get GuardDuty detector %s: %w", id, err)
		}
		result.Findings = append(result.Findings, s.detectorFinding(cfg, id, det))
		if det.Status != gdtypes.DetectorStatusEnabled {
			continue
		}

		threats, err := s.threats(ctx, cfg, id)
		if err != nil {
			slog.Warn("Failed to fetch GuardDuty findings", "region", s.region, "detector", id, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("detector %s: %v", id, err))
			continue
		}
		result.Findings = append(result.Findings, threats...)
	}

	return result, nil
}

func (s *GuardDutyScanner) detectorFinding(cfg ScanConfig, id string, det *guardduty.GetDetectorOutput) finding.Finding {
	name := "GuardDuty Detector " + id
	if det.Status != gdtypes.DetectorStatusEnabled {
		return finding.Finding{
			AccountID:      cfg.AccountID,
			Service:        ServiceGuardDuty,
			Check:          CheckGuardDutyEnabled,
			Type:           finding.TypeSecurity,
			Severity:       finding.SeverityHigh,
			ResourceID:     id,
			ResourceName:   name,
			Region:         s.region,
			Issue:          fmt.Sprintf("GuardDuty detector is %s", det.Status),
			Details:        finding.TextDetails(fmt.Sprintf("Detector %s is not actively monitoring", id)),
			Recommendation: "Enable the GuardDuty detector to resume threat monitoring",
		}
	}
	return finding.Finding{
		AccountID:    cfg.AccountID,
		Service:      ServiceGuardDuty,
		Check:        CheckGuardDutyStatus,
		Type:         finding.TypeInfo,
		Severity:     finding.SeverityInfo,
		ResourceID:   id,
		ResourceName: name,
		Region:       s.region,
		Issue:        "GuardDuty is active",
		Details: finding.FieldDetails(map[string]any{
			"detector_id":                  id,
			"status":                       string(det.Status),
			"finding_publishing_frequency": string(det.FindingPublishingFrequency),
			"created_at":                   deref(det.CreatedAt),
			"updated_at":                   deref(det.UpdatedAt),
		}),
	}
}

func (s *GuardDutyScanner) notEnabledFinding(cfg ScanConfig) finding.Finding {
	return finding.Finding{
		AccountID:      cfg.AccountID,
		Service:        ServiceGuardDuty,
		Check:          CheckGuardDutyEnabled,
		Type:           finding.TypeSecurity,
		Severity:       finding.SeverityHigh,
		ResourceID:     "guardduty-" + s.region,
		ResourceName:   fmt.Sprintf("GuardDuty (%s)", s.region),
		Region:         s.region,
		Issue:          "GuardDuty not enabled",
		Details:        finding.TextDetails("GuardDuty provides intelligent threat detection for your AWS environment"),
		Recommendation: fmt.Sprintf("Enable GuardDuty to monitor for malicious activity. Cost: ~$%.2f/month for a small account", pricing.MonthlyGuardDutyEstimate()),
		Action:         `Open the GuardDuty console and choose "Get Started" to enable threat detection`,
	}
}

func (s *GuardDutyScanner) accessFinding(cfg ScanConfig) finding.Finding {
	return finding.Finding{
		AccountID:      cfg.AccountID,
		Service:        ServiceGuardDuty,
		Check:          CheckGuardDutyAccess,
		Type:           finding.TypeRecommendation,
		Severity:       finding.SeverityLow,
		ResourceID:     "guardduty-" + s.region,
		ResourceName:   "GuardDuty Access",
		Region:         s.region,
		Issue:          "Cannot access GuardDuty",
		Details:        finding.TextDetails("Insufficient permissions to check GuardDuty status"),
		Recommendation: "Grant guardduty:ListDetectors, guardduty:GetDetector, guardduty:ListFindings and guardduty:GetFindings",
	}
}

func (s *GuardDutyScanner) threats(ctx context.Context, cfg ScanConfig, detectorID string) ([]finding.Finding, error) {
	since := s.now().Add(-time.Duration(cfg.FindingsDays) * 24 * time.Hour)
	list, err := s.client.ListFindings(ctx, &guardduty.ListFindingsInput{
		DetectorId: awssdk.String(detectorID),
		FindingCriteria: &gdtypes.FindingCriteria{
			Criterion: map[string]gdtypes.Condition{
				"severity":  {GreaterThanOrEqual: awssdk.Int64(int64(guardDutyHigh))},
				"updatedAt": {GreaterThanOrEqual: awssdk.Int64(since.UnixMilli())},
			},
		},
		MaxResults: awssdk.Int32(maxGuardDutyResult),
	})
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	if len(list.FindingIds) == 0 {
		return nil, nil
	}

	got, err := s.client.GetFindings(ctx, &guardduty.GetFindingsInput{
		DetectorId: awssdk.String(detectorID),
		FindingIds: list.FindingIds,
	})
	if err != nil {
		return nil, fmt.Errorf("get findings: %w", err)
	}

	out := make([]finding.Finding, 0, len(got.Findings))
	for _, gf := range got.Findings {
		out = append(out, s.threatFinding(cfg, gf))
	}
	return out, nil
}

func (s *GuardDutyScanner) threatFinding(cfg ScanConfig, gf gdtypes.Finding) finding.Finding {
	id := deref(gf.Id)
	findingType := deref(gf.Type)
	title := deref(gf.Title)
	if title == "" {
		title = "Unknown Threat"
	}
	score := awssdk.ToFloat64(gf.Severity)

	resourceType := "Unknown"
	resourceID := id
	if gf.Resource != nil {
		if rt := deref(gf.Resource.ResourceType); rt != "" {
			resourceType = rt
		}
		if rid := affectedResource(gf.Resource); rid != "" {
			resourceID = rid
		}
	}

	count := int32(1)
	if gf.Service != nil && gf.Service.Count != nil {
		count = *gf.Service.Count
	}

	action := guardDutyAction(findingType)
	return finding.Finding{
		AccountID:    cfg.AccountID,
		Service:      ServiceGuardDuty,
		Check:        CheckGuardDutyFinding,
		Type:         finding.TypeSecurity,
		Severity:     guardDutySeverity(score),
		ResourceID:   resourceID,
		ResourceName: title,
		Region:       s.region,
		Issue:        "Security threat: " + title,
		Details: finding.FieldDetails(map[string]any{
			"finding_id":     id,
			"finding_type":   findingType,
			"severity_score": score,
			"description":    deref(gf.Description),
			"resource_type":  resourceType,
			"first_seen":     deref(gf.CreatedAt),
			"last_seen":      deref(gf.UpdatedAt),
			"count":          count,
		}),
		Recommendation: action,
		Action:         action,
	}
}

// affectedResource returns the instance id or access key id a finding is about.
func affectedResource(r *gdtypes.Resource) string {
	if r.InstanceDetails != nil && r.InstanceDetails.InstanceId != nil {
		return *r.InstanceDetails.InstanceId
	}
	if r.AccessKeyDetails != nil && r.AccessKeyDetails.AccessKeyId != nil {
		return *r.AccessKeyDetails.AccessKeyId
	}
	return ""
}

func guardDutySeverity(score float64) string {
	switch {
	case score >= guardDutyCritical:
		return finding.SeverityCritical
	case score >= guardDutyHigh:
		return finding.SeverityHigh
	case score >= guardDutyMedium:
		return finding.SeverityMedium
	default:
		return finding.SeverityLow
	}
}

func guardDutyAction(findingType string) string {
	for _, a := range guardDutyActions {
		if strings.HasPrefix(findingType, a.prefix) {
			return a.action
		}
	}
	return fmt.Sprintf("Security issue detected: %s. Review the finding details and remediate according to its severity.", findingType)
}

// accessDenied reports whether err is an AWS authorization failure.
func accessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return strings.Contains(code, "AccessDenied") || code == "UnauthorizedOperation"
}
