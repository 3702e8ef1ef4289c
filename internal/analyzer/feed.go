package analyzer

import (
	"time"

	"github.com/ppiankov/alertspectre/internal/alert"
)

// FeedBuilder assembles daily and realtime feeds.
type FeedBuilder struct {
	now       func() time.Time
	recommend RecommendOptions
}

// NewFeedBuilder creates a builder. A nil clock uses time.Now.
func NewFeedBuilder(now func() time.Time, opts RecommendOptions) *FeedBuilder {
	if now == nil {
		now = time.Now
	}
	return &FeedBuilder{now: now, recommend: opts}
}

// Daily keeps alerts from the last day, then summarizes and annotates them.
func (b *FeedBuilder) Daily(alerts []alert.Alert) DailyFeed {
	now := b.now()
	daily := Filter(alerts, FilterOptions{Days: 1}, now)
	return DailyFeed{
		FeedDate: now.Format("2006-01-02"),
		Feed: Feed{
			FeedType:    FeedDaily,
			GeneratedAt: now,
			Summary:     Summarize(daily),
			Alerts:      daily,
		},
		Recommendations: Recommend(daily, b.recommend),
	}
}

// Realtime summarizes alerts as given.
func (b *FeedBuilder) Realtime(alerts []alert.Alert) Feed {
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	return Feed{
		FeedType:    FeedRealtime,
		GeneratedAt: b.now(),
		Summary:     Summarize(alerts),
		Alerts:      alerts,
	}
}
