package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/jordanhubbard/krishi"

// metricExportInterval is how often metrics are pushed to the collector
const metricExportInterval = 30 * time.Second

var (
	// Tracer is the application tracer. It is a no-op until InitTelemetry runs.
	Tracer trace.Tracer = otel.Tracer(instrumentationName)

	// Meter is the application meter
	Meter metric.Meter = otel.Meter(instrumentationName)

	// Custom metrics
	QueriesProcessed  metric.Int64Counter
	QueriesEscalated  metric.Int64Counter
	CollaboratorTime  metric.Float64Histogram
	AdviceGenerations metric.Int64Counter
)

// InitTelemetry initializes OpenTelemetry tracing and metrics
func InitTelemetry(ctx context.Context, serviceName, version, otelEndpoint string, logger *zap.Logger) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
			attribute.String("environment", "development"),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(otelEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = traceProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := newMeterProvider(res,
		sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricExportInterval)))

	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	Tracer = otel.Tracer(serviceName)
	if err := useMeterProvider(meterProvider, serviceName); err != nil {
		_ = traceProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	logger.Info("telemetry initialized", zap.String("endpoint", otelEndpoint))

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return errors.Join(
			traceProvider.Shutdown(shutdownCtx),
			meterProvider.Shutdown(shutdownCtx),
		)
	}, nil
}

// newMeterProvider builds an SDK meter provider that exports through reader
func newMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
}

// useMeterProvider points Meter at provider and recreates the instruments
func useMeterProvider(provider metric.MeterProvider, name string) error {
	Meter = provider.Meter(name)
	return initMetrics()
}

// initMetrics creates all custom metrics
func initMetrics() error {
	var err error

	QueriesProcessed, err = Meter.Int64Counter(
		"krishi.queries.processed",
		metric.WithDescription("Number of farmer queries processed"),
	)
	if err != nil {
		return err
	}

	QueriesEscalated, err = Meter.Int64Counter(
		"krishi.queries.escalated",
		metric.WithDescription("Number of farmer queries routed to human review"),
	)
	if err != nil {
		return err
	}

	AdviceGenerations, err = Meter.Int64Counter(
		"krishi.advice.generated",
		metric.WithDescription("Number of advice results generated, by branch"),
	)
	if err != nil {
		return err
	}

	CollaboratorTime, err = Meter.Float64Histogram(
		"krishi.collaborator.duration",
		metric.WithDescription("Collaborator call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// RecordQuery adds a processed query to the OTel counters when they are initialized
func RecordQuery(ctx context.Context, branch string, escalated bool) {
	if QueriesProcessed != nil {
		QueriesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("escalated", escalated)))
	}
	if escalated && QueriesEscalated != nil {
		QueriesEscalated.Add(ctx, 1)
	}
	if AdviceGenerations != nil {
		AdviceGenerations.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", branch)))
	}
}

// RecordCollaborator records a collaborator call duration when metrics are initialized
func RecordCollaborator(ctx context.Context, name string, d time.Duration) {
	if CollaboratorTime != nil {
		CollaboratorTime.Record(ctx, float64(d.Microseconds())/1000.0, metric.WithAttributes(attribute.String("collaborator", name)))
	}
}
