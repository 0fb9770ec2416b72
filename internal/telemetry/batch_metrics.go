package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/soundsort/types"
)

const meterName = "github.com/BaSui01/soundsort/batch"

// BatchMetrics 通过 OTel Meter 导出调度器指标，实现 batch.Observer，
// 与 Prometheus 收集器并行工作，供 OTLP 后端使用。
type BatchMetrics struct {
	queueDepth metric.Int64Gauge
	batchSize  metric.Int64Histogram
	window     metric.Float64Histogram
	inference  metric.Float64Histogram
	outcomes   metric.Int64Counter
}

// NewBatchMetrics 创建调度器指标；mp 为 nil 时使用全局 MeterProvider
func NewBatchMetrics(mp metric.MeterProvider) (*BatchMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &BatchMetrics{}

	var err error
	m.queueDepth, err = meter.Int64Gauge("soundsort.scheduler.queue.depth",
		metric.WithDescription("Requests waiting in the admission queue"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.batchSize, err = meter.Int64Histogram("soundsort.batch.size",
		metric.WithDescription("Requests per executed batch"),
		metric.WithUnit("{request}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64, 128))
	if err != nil {
		return nil, err
	}

	m.window, err = meter.Float64Histogram("soundsort.batch.window",
		metric.WithDescription("Time spent collecting a batch"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1))
	if err != nil {
		return nil, err
	}

	m.inference, err = meter.Float64Histogram("soundsort.batch.inference.duration",
		metric.WithDescription("Forward pass duration per batch"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10))
	if err != nil {
		return nil, err
	}

	m.outcomes, err = meter.Int64Counter("soundsort.request.outcomes",
		metric.WithDescription("Terminal outcomes by label or error code"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveQueueDepth 记录队列深度
func (m *BatchMetrics) ObserveQueueDepth(depth int) {
	m.queueDepth.Record(context.Background(), int64(depth))
}

// ObserveBatch 记录一次批执行
func (m *BatchMetrics) ObserveBatch(size int, window, inference time.Duration) {
	ctx := context.Background()
	m.batchSize.Record(ctx, int64(size))
	m.window.Record(ctx, window.Seconds())
	m.inference.Record(ctx, inference.Seconds())
}

// ObserveOutcome 记录请求终态
func (m *BatchMetrics) ObserveOutcome(label types.Label, err error) {
	outcome := label.String()
	if err != nil {
		outcome = "error"
		if code := types.GetErrorCode(err); code != "" {
			outcome = string(code)
		}
	}
	m.outcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
