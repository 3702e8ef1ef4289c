package analyzer

import (
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
)

// TopAlertsLimit is the number of alerts carried in Summary.TopAlerts.
const TopAlertsLimit = 10

// DefaultHighCostThreshold is the monthly cost above which an alert counts as high-cost.
const DefaultHighCostThreshold = 50.0

// Summary holds aggregated statistics about an alert collection.
type Summary struct {
	TotalAlerts            int            `json:"total_alerts"`
	ByType                 map[string]int `json:"by_type"`
	BySeverity             map[string]int `json:"by_severity"`
	ByService              map[string]int `json:"by_service"`
	TotalMonthlyCostImpact float64        `json:"total_monthly_cost_impact"`
	TopAlerts              []alert.Alert  `json:"top_alerts"`
}

// FilterOptions narrows an alert collection. Zero values are not applied.
type FilterOptions struct {
	Types          []alert.Type
	SeverityMin    string
	Days           int
	MinMonthlyCost float64
}

// RecommendOptions tunes recommendation synthesis.
type RecommendOptions struct {
	HighCostThreshold float64
}

// DefaultRecommendOptions returns the stock recommendation thresholds.
func DefaultRecommendOptions() RecommendOptions {
	return RecommendOptions{HighCostThreshold: DefaultHighCostThreshold}
}

// Feed types.
const (
	FeedDaily    = "daily"
	FeedRealtime = "realtime"
)

// Feed is a summarized package of alerts.
type Feed struct {
	FeedType    string        `json:"feed_type"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     Summary       `json:"summary"`
	Alerts      []alert.Alert `json:"alerts"`
}

// DailyFeed is a Feed restricted to the last day, with recommendations.
type DailyFeed struct {
	FeedDate string `json:"feed_date"`
	Feed
	Recommendations []string `json:"recommendations"`
}
