package classcache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for class cache operations.
var (
	tracer = otel.Tracer("typecache.classcache")
	meter  = otel.Meter("typecache.classcache")
)

var (
	lockAcquisitions  metric.Int64Counter
	lockWait          metric.Float64Histogram
	mergeLatency      metric.Float64Histogram
	mergeEvents       metric.Int64Histogram
	graphSize         metric.Int64Gauge
	instrumentedTypes metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lockAcquisitions, err = meter.Int64Counter(
			"classcache_lock_acquisitions_total",
			metric.WithDescription("Number of cache lock acquisitions by mode"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lockWait, err = meter.Float64Histogram(
			"classcache_lock_wait_seconds",
			metric.WithDescription("Time spent waiting for the cache lock"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mergeLatency, err = meter.Float64Histogram(
			"classcache_merge_duration_seconds",
			metric.WithDescription("Duration of type description merges"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mergeEvents, err = meter.Int64Histogram(
			"classcache_merge_events",
			metric.WithDescription("Number of events emitted per merge"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		graphSize, err = meter.Int64Gauge(
			"classcache_types",
			metric.WithDescription("Current number of type nodes in the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		instrumentedTypes, err = meter.Int64Counter(
			"classcache_instrumented_types_total",
			metric.WithDescription("Classes on which instrumentation points were added"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startOperationSpan creates a span for a cache operation.
func startOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ClassCache."+operation,
		trace.WithAttributes(
			attribute.String("classcache.operation", operation),
		),
	)
}

func recordLockAcquired(mode string, wait time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	lockAcquisitions.Add(ctx, 1, attrs)
	lockWait.Record(ctx, wait.Seconds(), attrs)
}

func recordMergeMetrics(ctx context.Context, duration time.Duration, events int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	mergeLatency.Record(ctx, duration.Seconds(), attrs)
	mergeEvents.Record(ctx, int64(events), attrs)
}

func recordGraphSize(ctx context.Context, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	graphSize.Record(ctx, int64(size))
}

func recordInstrumented(ctx context.Context, count int) {
	if err := initMetrics(); err != nil {
		return
	}
	instrumentedTypes.Add(ctx, int64(count))
}
