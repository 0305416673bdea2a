package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CollectionMetrics holds inventory collection metrics
type CollectionMetrics struct {
	RecordsCollected metric.Int64Counter
	RegionFailures   metric.Int64Counter
	AccountsSkipped  metric.Int64Counter
	CollectDuration  metric.Float64Histogram
}

// InitCollectionMetrics initializes collection metrics on the given meter
func InitCollectionMetrics(meter metric.Meter) (*CollectionMetrics, error) {
	m := &CollectionMetrics{}
	var err error

	m.RecordsCollected, err = meter.Int64Counter(
		"kartta.records.collected.total",
		metric.WithDescription("Total number of resource records collected"),
		metric.WithUnit("records"),
	)
	if err != nil {
		return nil, err
	}

	m.RegionFailures, err = meter.Int64Counter(
		"kartta.regions.failed.total",
		metric.WithDescription("Total number of per-region collection failures"),
		metric.WithUnit("failures"),
	)
	if err != nil {
		return nil, err
	}

	m.AccountsSkipped, err = meter.Int64Counter(
		"kartta.accounts.skipped.total",
		metric.WithDescription("Total number of accounts skipped during collection"),
		metric.WithUnit("accounts"),
	)
	if err != nil {
		return nil, err
	}

	m.CollectDuration, err = meter.Float64Histogram(
		"kartta.collect.duration",
		metric.WithDescription("Duration of full inventory collections"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCollection records the outcome of one collection call.
func (m *CollectionMetrics) RecordCollection(ctx context.Context, service string, records int, durationMs float64) {
	attrs := metric.WithAttributes(attribute.String("service", service))
	m.RecordsCollected.Add(ctx, int64(records), attrs)
	m.CollectDuration.Record(ctx, durationMs, attrs)
}
