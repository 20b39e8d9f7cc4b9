// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"loan-intake/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter and tracer providers.
// A nil *Observability is valid and records nothing.
type Observability struct {
	meterProvider    *metric.MeterProvider
	tracing          *tracing
	meter            otelmetric.Meter
	mutationCounter  otelmetric.Int64Counter
	mutationDuration otelmetric.Float64Histogram
	jobCounter       otelmetric.Int64Counter
	jobDuration      otelmetric.Float64Histogram
}

// Options configures New.
type Options struct {
	ServiceName    string
	ServiceVersion string
	TracingEnabled bool
	JaegerEndpoint string
	SampleRatio    float64
}

func New(opts Options, log logger.Logger) *Observability {
	o := &Observability{}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(opts.ServiceName)
		o.initInstruments()
	}

	if opts.TracingEnabled {
		t, err := newTracing(opts)
		if err != nil {
			log.Warn("Tracing disabled", map[string]interface{}{"error": err})
		} else {
			o.tracing = t
		}
	}

	return o
}

func (o *Observability) initInstruments() {
	o.mutationCounter, _ = o.meter.Int64Counter(
		"review.mutations",
		otelmetric.WithDescription("Number of admin review mutations"),
	)
	o.mutationDuration, _ = o.meter.Float64Histogram(
		"review.mutation.duration",
		otelmetric.WithDescription("Admin review mutation duration"),
		otelmetric.WithUnit("ms"),
	)
	o.jobCounter, _ = o.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = o.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
}

// RecordMutation records one review mutation and how long it took.
func (o *Observability) RecordMutation(ctx context.Context, kind, outcome string, duration time.Duration) {
	if o == nil || o.mutationCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	o.mutationCounter.Add(ctx, 1, attrs)
	o.mutationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	if o == nil || o.jobCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	o.jobCounter.Add(ctx, 1, attrs)
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.shutdown(ctx)
	}
}
