// internal/common/observability/observability.go
package observability

import (
	"context"
	"fmt"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer providers for the
// worker process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	rankingScore   otelmetric.Float64Histogram
}

type options struct {
	jaegerEndpoint string
	registerer     promclient.Registerer
	spanProcessor  sdktrace.SpanProcessor
}

type Option func(*options)

// WithJaeger exports spans to a Jaeger collector, for example
// http://jaeger:14268/api/traces.
func WithJaeger(endpoint string) Option {
	return func(o *options) { o.jaegerEndpoint = endpoint }
}

// WithRegisterer registers the metric exporter somewhere other than the
// default Prometheus registry.
func WithRegisterer(r promclient.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithSpanProcessor adds a span processor, used by tests to record spans.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessor = sp }
}

func New(serviceName string, opts ...Option) *Observability {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	obs := &Observability{}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if o.jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(o.jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
		}
	}
	if o.spanProcessor != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(o.spanProcessor))
	}
	obs.tracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(obs.tracerProvider)
	obs.tracer = obs.tracerProvider.Tracer(serviceName)

	var promOpts []prometheus.Option
	if o.registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(o.registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	rankingScore, _ := meter.Float64Histogram(
		"ranking.top_score",
		otelmetric.WithDescription("Score of the best donor returned by a ranking"),
	)

	obs.meterProvider = provider
	obs.meter = meter
	obs.jobCounter = jobCounter
	obs.jobDuration = jobDuration
	obs.rankingScore = rankingScore
	return obs
}

// StartSpan starts a span and returns a function that ends it, recording
// err when non-nil. The recording methods are safe on a nil receiver.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	var tracer trace.Tracer
	if o != nil {
		tracer = o.tracer
	}
	if tracer == nil {
		tracer = otel.Tracer("lifelink-workers")
	}

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

// RecordTopScore records the best score of a non-empty ranking.
func (o *Observability) RecordTopScore(ctx context.Context, bloodGroup string, score float64) {
	if o != nil && o.rankingScore != nil {
		o.rankingScore.Record(ctx, score, otelmetric.WithAttributes(
			attribute.String("blood_group", bloodGroup),
		))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown: %v", errs)
	}
	return nil
}
