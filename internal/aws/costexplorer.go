package aws

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/ppiankov/alertspectre/internal/finding"
)

const (
	costLookbackDays    = 90
	anomalyLookbackDays = 30
	minServiceCost      = 1.0
	trendWindow         = 3
	trendBandPercent    = 10.0
	highAnomalyImpact   = 100.0
	ceDateLayout        = "2006-01-02"
)

// CostExplorerAPI is the minimal interface for Cost Explorer operations.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, input *costexplorer.GetCostAndUsageInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetAnomalyMonitors(ctx context.Context, input *costexplorer.GetAnomalyMonitorsInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetAnomalyMonitorsOutput, error)
	GetAnomalies(ctx context.Context, input *costexplorer.GetAnomaliesInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetAnomaliesOutput, error)
}

// CostExplorerScanner reports per-service spend with its trend and recent cost anomalies.
type CostExplorerScanner struct {
	client CostExplorerAPI
	now    func() time.Time
}

// NewCostExplorerScanner creates an account-wide Cost Explorer scanner.
func NewCostExplorerScanner(client CostExplorerAPI) *CostExplorerScanner {
	return &CostExplorerScanner{client: client, now: time.Now}
}

// Service returns the findings tree key.
func (s *CostExplorerScanner) Service() string {
	return ServiceCostExplorer
}

// Scan runs the cost-by-service and anomaly checks. One failing check does not
// stop the other; its error is recorded in the result.
func (s *CostExplorerScanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	result := &ScanResult{}

	costs, err := s.costByService(ctx, cfg)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.Findings = append(result.Findings, costs...)
	result.ResourcesScanned += len(costs)

	anomalies, err := s.anomalies(ctx, cfg)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.Findings = append(result.Findings, anomalies...)

	if len(result.Errors) == 2 {
		return nil, fmt.Errorf("cost explorer: %s; %s", result.Errors[0], result.Errors[1])
	}
	return result, nil
}

type costPoint struct {
	Date string  `json:"date"`
	Cost float64 `json:"cost"`
}

func (s *CostExplorerScanner) costByService(ctx context.Context, cfg ScanConfig) ([]finding.Finding, error) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -costLookbackDays)

	points := make(map[string][]costPoint)
	var token *string
	for {
		out, err := s.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod: &cetypes.DateInterval{
				Start: awssdk.String(start.Format(ceDateLayout)),
				End:   awssdk.String(end.Format(ceDateLayout)),
			},
			Granularity: cetypes.GranularityMonthly,
			Metrics:     []string{"UnblendedCost"},
			GroupBy: []cetypes.GroupDefinition{{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  awssdk.String("SERVICE"),
			}},
			NextPageToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("get cost and usage: %w", err)
		}
		for _, r := range out.ResultsByTime {
			date := ""
			if r.TimePeriod != nil {
				date = deref(r.TimePeriod.Start)
			}
			for _, g := range r.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				amount, _ := strconv.ParseFloat(deref(g.Metrics["UnblendedCost"].Amount), 64)
				points[g.Keys[0]] = append(points[g.Keys[0]], costPoint{Date: date, Cost: amount})
			}
		}
		if out.NextPageToken == nil {
			break
		}
		token = out.NextPageToken
	}

	services := make([]string, 0, len(points))
	for name := range points {
		services = append(services, name)
	}
	sort.Strings(services)

	var findings []finding.Finding
	for _, name := range services {
		series := points[name]
		var total float64
		for _, p := range series {
			total += p.Cost
		}
		if total <= minServiceCost {
			continue
		}
		trend, pct := costTrend(series)
		total = round2(total)
		findings = append(findings, finding.Finding{
			AccountID:    cfg.AccountID,
			Service:      ServiceCostExplorer,
			Check:        CheckCostByService,
			Type:         finding.TypeInfo,
			Severity:     finding.SeverityInfo,
			ResourceID:   name,
			ResourceName: name,
			Region:       finding.RegionGlobal,
			MonthlyCost:  finding.Amount(total),
			Issue:        name + " - monthly cost analysis",
			Details: finding.FieldDetails(map[string]any{
				"aws_service":      name,
				"total_cost":       total,
				"period":           "MONTHLY",
				"trend":            trend,
				"trend_percentage": round2(pct),
				"data_points":      series,
			}),
		})
	}
	return findings, nil
}

// costTrend compares the mean of the last three points with the first three.
func costTrend(series []costPoint) (string, float64) {
	if len(series) < 2 {
		return "unknown", 0
	}
	n := min(trendWindow, len(series))
	recent := meanCost(series[len(series)-n:])
	older := meanCost(series[:n])
	if older <= 0 {
		return "stable", 0
	}
	pct := (recent - older) / older * 100
	switch {
	case pct > trendBandPercent:
		return "increasing", pct
	case pct < -trendBandPercent:
		return "decreasing", pct
	default:
		return "stable", pct
	}
}

func meanCost(points []costPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Cost
	}
	return sum / float64(len(points))
}

func (s *CostExplorerScanner) anomalies(ctx context.Context, cfg ScanConfig) ([]finding.Finding, error) {
	monitors, err := s.client.GetAnomalyMonitors(ctx, &costexplorer.GetAnomalyMonitorsInput{})
	if err != nil {
		if accessDenied(err) {
			return []finding.Finding{anomalyDetectionFinding(cfg, "Cost Anomaly Detection not enabled",
				"Enable Cost Anomaly Detection to monitor for unusual spending",
				"Enable Cost Anomaly Detection in AWS Cost Explorer")}, nil
		}
		return nil, fmt.Errorf("get anomaly monitors: %w", err)
	}
	if len(monitors.AnomalyMonitors) == 0 {
		return []finding.Finding{anomalyDetectionFinding(cfg, "Cost Anomaly Detection not configured",
			"Enable Cost Anomaly Detection to automatically identify unusual spending patterns",
			"Set up Cost Anomaly Detection monitors in the AWS Cost Explorer console")}, nil
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -anomalyLookbackDays)

	var findings []finding.Finding
	var token *string
	for {
		out, err := s.client.GetAnomalies(ctx, &costexplorer.GetAnomaliesInput{
			DateInterval: &cetypes.AnomalyDateInterval{
				StartDate: awssdk.String(start.Format(ceDateLayout)),
				EndDate:   awssdk.String(end.Format(ceDateLayout)),
			},
			NextPageToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("get anomalies: %w", err)
		}
		for _, a := range out.Anomalies {
			if f, ok := anomalyFinding(cfg, a); ok {
				findings = append(findings, f)
			}
		}
		if out.NextPageToken == nil {
			break
		}
		token = out.NextPageToken
	}
	return findings, nil
}

func anomalyFinding(cfg ScanConfig, a cetypes.Anomaly) (finding.Finding, bool) {
	if a.Impact == nil || a.Impact.TotalImpact <= cfg.MinAnomalyImpact {
		return finding.Finding{}, false
	}
	impact := round2(a.Impact.TotalImpact)
	severity := finding.SeverityMedium
	if a.Impact.TotalImpact > highAnomalyImpact {
		severity = finding.SeverityHigh
	}
	var score float64
	if a.AnomalyScore != nil {
		score = a.AnomalyScore.MaxScore
	}
	dimension := deref(a.DimensionValue)
	if dimension == "" {
		dimension = "Unknown"
	}
	id := deref(a.AnomalyId)
	return finding.Finding{
		AccountID:    cfg.AccountID,
		Service:      ServiceCostExplorer,
		Check:        CheckCostAnomaly,
		Type:         finding.TypeCost,
		Severity:     severity,
		ResourceID:   id,
		ResourceName: "Anomaly-" + dimension,
		Region:       finding.RegionGlobal,
		MonthlyCost:  finding.Amount(impact),
		Issue:        "Cost anomaly detected",
		Details: finding.FieldDetails(map[string]any{
			"anomaly_id":      id,
			"anomaly_score":   score,
			"impact":          impact,
			"max_impact":      round2(a.Impact.MaxImpact),
			"dimension_value": dimension,
			"start_date":      deref(a.AnomalyStartDate),
			"end_date":        deref(a.AnomalyEndDate),
		}),
		Recommendation: fmt.Sprintf("Investigate unexpected spend on %s", dimension),
	}, true
}

func anomalyDetectionFinding(cfg ScanConfig, issue, details, rec string) finding.Finding {
	return finding.Finding{
		AccountID:      cfg.AccountID,
		Service:        ServiceCostExplorer,
		Check:          CheckAnomalyDetection,
		Type:           finding.TypeRecommendation,
		Severity:       finding.SeverityMedium,
		ResourceID:     "anomaly-detection",
		ResourceName:   "Cost Anomaly Detection",
		Region:         finding.RegionGlobal,
		Issue:          issue,
		Details:        finding.TextDetails(details),
		Recommendation: rec,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
