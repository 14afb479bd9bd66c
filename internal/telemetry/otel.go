// Package telemetry configures OpenTelemetry tracing for the server and worker.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Sampler returns the parent based sampler for a ratio. Ratios outside (0,1)
// sample everything.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// InitTracer installs a global tracer provider exporting over OTLP HTTP
func InitTracer(ctx context.Context, serviceName, endpoint string, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(sampleRatio)),
	)
	Install(tp)
	return tp, nil
}

// Install sets tp as the global provider with W3C trace context and baggage
// propagation
func Install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Setup initializes tracing when enabled. Tracing problems never stop a
// process: they are logged and a no-op shutdown is returned.
func Setup(ctx context.Context, enabled bool, serviceName, endpoint string, sampleRatio float64, log *zap.Logger) (ShutdownFunc, bool) {
	if log == nil {
		log = zap.NewNop()
	}
	if !enabled {
		return noopShutdown, false
	}
	if endpoint == "" {
		log.Warn("otel_enabled_but_endpoint_not_configured")
		return noopShutdown, false
	}
	tp, err := InitTracer(ctx, serviceName, endpoint, sampleRatio)
	if err != nil {
		log.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return noopShutdown, false
	}
	log.Info("otel_tracer_initialized",
		zap.String("service", serviceName),
		zap.String("endpoint", endpoint),
		zap.Float64("sample_ratio", sampleRatio),
	)
	return tp.Shutdown, true
}

// Shutdown stops a tracer provider. A nil provider is a no-op.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
