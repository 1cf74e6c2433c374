package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"parkwatch/internal/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// ScrapeOutcome is what one scrape run reports.
type ScrapeOutcome struct {
	Success  bool
	Garages  int
	Stored   int
	Failed   int
	Duration time.Duration
}

// CloudWatchJobMetrics emits job metrics. Publishing failures are logged and
// never fail the job.
//
// Metrics emitted (all with dimension Job):
//   - ScrapeSuccess / ScrapeFailure, GaragesScraped, ReadingsStored,
//     ReadingsFailed, ScrapeDuration
//   - ForecastRefreshed / ForecastSkipped, ForecastGarageFailures
//   - ReadingsArchived
type CloudWatchJobMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

func NewCloudWatchJobMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchJobMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchJobMetrics{client: client, namespace: namespace, logger: logger}
}

func jobDims(job string) []cwtypes.Dimension {
	return []cwtypes.Dimension{{Name: aws.String(types.DimJob), Value: aws.String(job)}}
}

func count(name, job string, v float64) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(v),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: jobDims(job),
	}
}

func (m *CloudWatchJobMetrics) put(ctx context.Context, job string, data []cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to publish job metrics", "job", job, "error", err)
	}
}

func (m *CloudWatchJobMetrics) RecordScrape(ctx context.Context, o ScrapeOutcome) {
	const job = "scrape"
	result := types.MetricScrapeSuccess
	if !o.Success {
		result = types.MetricScrapeFailure
	}
	m.put(ctx, job, []cwtypes.MetricDatum{
		count(result, job, 1),
		count(types.MetricGaragesScraped, job, float64(o.Garages)),
		count(types.MetricReadingsStored, job, float64(o.Stored)),
		count(types.MetricReadingsFailed, job, float64(o.Failed)),
		{
			MetricName: aws.String(types.MetricScrapeDuration),
			Value:      aws.Float64(float64(o.Duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: jobDims(job),
		},
	})
}

func (m *CloudWatchJobMetrics) RecordForecastRefresh(ctx context.Context, refreshed bool, garageFailures int) {
	const job = "forecast_refresh"
	name := types.MetricForecastRefreshed
	if !refreshed {
		name = types.MetricForecastSkipped
	}
	m.put(ctx, job, []cwtypes.MetricDatum{
		count(name, job, 1),
		count(types.MetricForecastGarageFails, job, float64(garageFailures)),
	})
}

func (m *CloudWatchJobMetrics) RecordArchive(ctx context.Context, readings int) {
	const job = "export_readings"
	m.put(ctx, job, []cwtypes.MetricDatum{count(types.MetricReadingsArchived, job, float64(readings))})
}
