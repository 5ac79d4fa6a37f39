// Package telemetry publishes per-batch CloudWatch metrics. Publication is
// best effort: failures are logged and never affect the invocation result.
package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"trailnotify/internal/types"
)

const (
	// PublishTimeout bounds a single PutMetricData call.
	PublishTimeout = 2 * time.Second
	// DeadlineMargin is kept free before the invocation deadline. Publication
	// is skipped when less than this remains.
	DeadlineMargin = 500 * time.Millisecond
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// BatchStats is what one invocation reports.
type BatchStats struct {
	Records                int
	Matched                int
	Skipped                int
	ClassificationFailures int
	// Delivery is nil when nothing was dispatched.
	Delivery *types.DeliveryResult
}

// BatchMetrics records the outcome of one batch.
type BatchMetrics interface {
	RecordBatch(ctx context.Context, stats BatchStats)
}

var (
	_ BatchMetrics = (*CloudWatchBatchMetrics)(nil)
	_ BatchMetrics = NopMetrics{}
)

// NopMetrics discards everything. Used when METRICS_ENABLED is false and by
// the local harness.
type NopMetrics struct{}

func (NopMetrics) RecordBatch(context.Context, BatchStats) {}

// CloudWatchBatchMetrics emits one PutMetricData call per batch.
//
// Metrics emitted, all with the Service dimension:
//   - RecordsProcessed, RecordsMatched, RecordsSkipped, ClassificationFailure (Count)
//   - DeliveryAttempt: extra dim Result (sent|failed), only when a POST was attempted
//   - DeliveryLatency (Milliseconds), only when a POST was attempted
type CloudWatchBatchMetrics struct {
	client    CloudWatchClient
	namespace string
	service   string
	logger    types.Logger
	clock     types.Clock
}

// NewCloudWatchBatchMetrics creates a publisher. An empty namespace falls back
// to types.MetricNamespace.
func NewCloudWatchBatchMetrics(client CloudWatchClient, namespace, service string, logger types.Logger) *CloudWatchBatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchBatchMetrics{
		client:    client,
		namespace: namespace,
		service:   service,
		logger:    logger,
		clock:     types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (m *CloudWatchBatchMetrics) SetClock(c types.Clock) {
	m.clock = c
}

// RecordBatch publishes the batch counters.
func (m *CloudWatchBatchMetrics) RecordBatch(ctx context.Context, stats BatchStats) {
	now := m.clock.Now()
	service := cwtypes.Dimension{Name: aws.String(types.DimService), Value: aws.String(m.service)}

	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  aws.Time(now),
			Dimensions: []cwtypes.Dimension{service},
		}
	}

	data := []cwtypes.MetricDatum{
		count(types.MetricRecordsProcessed, stats.Records),
		count(types.MetricRecordsMatched, stats.Matched),
		count(types.MetricRecordsSkipped, stats.Skipped),
		count(types.MetricClassificationFailure, stats.ClassificationFailures),
	}

	if d := stats.Delivery; d != nil && d.Status != types.DeliveryStatusSkipped {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String(types.MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  aws.Time(now),
				Dimensions: []cwtypes.Dimension{
					service,
					{Name: aws.String(types.DimResult), Value: aws.String(string(d.Status))},
				},
			},
			cwtypes.MetricDatum{
				MetricName: aws.String(types.MetricDeliveryLatency),
				Value:      aws.Float64(float64(d.Duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Timestamp:  aws.Time(now),
				Dimensions: []cwtypes.Dimension{service},
			},
		)
	}

	ctx, cancel, ok := publishContext(ctx)
	if !ok {
		m.logger.Warn("skipping batch metrics: invocation deadline too close",
			"namespace", m.namespace,
			"records", stats.Records,
		)
		return
	}
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record batch metrics",
			"error", err.Error(),
			"namespace", m.namespace,
			"records", stats.Records,
		)
	}
}

// publishContext detaches from the caller's cancellation so metrics for a
// finished batch still go out, but keeps the caller's deadline (less
// DeadlineMargin) as an upper bound. ok is false when no time is left.
func publishContext(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	timeout := PublishTimeout
	if deadline, has := ctx.Deadline(); has {
		remaining := time.Until(deadline) - DeadlineMargin
		if remaining <= 0 {
			return nil, nil, false
		}
		timeout = min(timeout, remaining)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	return pctx, cancel, true
}
