package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the application's domain metrics.
type Registry struct {
	meter metric.Meter

	// Detection metrics
	EventsAnalyzedCounter metric.Int64Counter
	AlertsCreatedCounter  metric.Int64Counter
	SweepDuration         metric.Float64Histogram

	// Response metrics
	ActionOutcomeCounter metric.Int64Counter

	// Ingest metrics
	EventsIngestedCounter metric.Int64Counter

	// API metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter
}

// NewRegistry creates a metrics registry on the global meter provider.
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	r.EventsAnalyzedCounter, err = meter.Int64Counter(
		"accesswatch.detection.events_analyzed",
		metric.WithDescription("Access events scored by the detection engine"),
	)
	if err != nil {
		return nil, err
	}

	r.AlertsCreatedCounter, err = meter.Int64Counter(
		"accesswatch.detection.alerts_created",
		metric.WithDescription("Alerts created, by severity"),
	)
	if err != nil {
		return nil, err
	}

	r.SweepDuration, err = meter.Float64Histogram(
		"accesswatch.detection.sweep_duration",
		metric.WithDescription("Duration of analysis sweeps in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, err
	}

	r.ActionOutcomeCounter, err = meter.Int64Counter(
		"accesswatch.response.action_outcomes",
		metric.WithDescription("Response actions by type and outcome"),
	)
	if err != nil {
		return nil, err
	}

	r.EventsIngestedCounter, err = meter.Int64Counter(
		"accesswatch.ingest.events",
		metric.WithDescription("Access events landed in the event store"),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestDuration, err = meter.Float64Histogram(
		"accesswatch.api.request_duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestCounter, err = meter.Int64Counter(
		"accesswatch.api.requests",
		metric.WithDescription("HTTP requests by method, path and status"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordEventAnalyzed counts one scored event.
func (r *Registry) RecordEventAnalyzed(ctx context.Context) {
	r.EventsAnalyzedCounter.Add(ctx, 1)
}

// RecordAlertCreated counts one alert by severity.
func (r *Registry) RecordAlertCreated(ctx context.Context, severity string) {
	r.AlertsCreatedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("severity", severity)))
}

// RecordSweepDuration records how long an analysis sweep took.
func (r *Registry) RecordSweepDuration(ctx context.Context, d time.Duration, simulation bool) {
	r.SweepDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Bool("simulation", simulation)))
}

// RecordActionOutcome counts one executed or failed response action.
func (r *Registry) RecordActionOutcome(ctx context.Context, actionType string, success bool) {
	r.ActionOutcomeCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", actionType),
			attribute.Bool("success", success),
		))
}

// RecordEventIngested counts one event landed by the ingest pipeline.
func (r *Registry) RecordEventIngested(ctx context.Context, source string) {
	r.EventsIngestedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)))
}

// RecordAPIRequest records one HTTP request.
func (r *Registry) RecordAPIRequest(ctx context.Context, method, path string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	r.APIRequestCounter.Add(ctx, 1, attrs)
	r.APIRequestDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
