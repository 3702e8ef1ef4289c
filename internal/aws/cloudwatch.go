package aws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	// maxMetricDataQueries is the GetMetricData per-call query limit.
	maxMetricDataQueries = 500
	metricPeriodSeconds  = 3600
)

// Statistic is a CloudWatch statistic name.
type Statistic string

const (
	StatAverage Statistic = "Average"
	StatSum     Statistic = "Sum"
)

// MetricQuery identifies one metric keyed by a single dimension.
type MetricQuery struct {
	Namespace string
	Name      string
	Dimension string
	Stat      Statistic
}

// CloudWatchAPI is the minimal interface for CloudWatch operations needed by the metrics fetcher.
type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, input *cloudwatch.GetMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// MetricsFetcher retrieves CloudWatch metrics in batches.
type MetricsFetcher struct {
	client CloudWatchAPI
	now    func() time.Time
}

// NewMetricsFetcher creates a fetcher using the given CloudWatch client.
func NewMetricsFetcher(client CloudWatchAPI) *MetricsFetcher {
	return &MetricsFetcher{client: client, now: time.Now}
}

// Fetch aggregates q over the lookback window for each id. Averages are the
// mean of the hourly datapoints; sums are their total. Ids without datapoints
// are absent from the result.
func (f *MetricsFetcher) Fetch(ctx context.Context, q MetricQuery, ids []string, lookbackDays int) (map[string]float64, error) {
	results := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	end := f.now().UTC()
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	for i := 0; i < len(ids); i += maxMetricDataQueries {
		batch := ids[i:min(i+maxMetricDataQueries, len(ids))]
		slog.Debug("Fetching CloudWatch metrics", "metric", q.Name, "offset", i, "count", len(batch))

		byQueryID := make(map[string]string, len(batch))
		queries := make([]cwtypes.MetricDataQuery, 0, len(batch))
		for j, id := range batch {
			queryID := fmt.Sprintf("q%d", j)
			byQueryID[queryID] = id
			queries = append(queries, cwtypes.MetricDataQuery{
				Id: awssdk.String(queryID),
				MetricStat: &cwtypes.MetricStat{
					Metric: &cwtypes.Metric{
						Namespace:  awssdk.String(q.Namespace),
						MetricName: awssdk.String(q.Name),
						Dimensions: []cwtypes.Dimension{{
							Name:  awssdk.String(q.Dimension),
							Value: awssdk.String(id),
						}},
					},
					Period: awssdk.Int32(metricPeriodSeconds),
					Stat:   awssdk.String(string(q.Stat)),
				},
			})
		}

		out, err := f.client.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
			MetricDataQueries: queries,
			StartTime:         awssdk.Time(start),
			EndTime:           awssdk.Time(end),
		})
		if err != nil {
			return nil, fmt.Errorf("get metric data (%s/%s): %w", q.Namespace, q.Name, err)
		}

		for _, r := range out.MetricDataResults {
			id, ok := byQueryID[deref(r.Id)]
			if !ok || len(r.Values) == 0 {
				continue
			}
			var total float64
			for _, v := range r.Values {
				total += v
			}
			if q.Stat == StatAverage {
				total /= float64(len(r.Values))
			}
			results[id] = total
		}
	}

	return results, nil
}
