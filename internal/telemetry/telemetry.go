// Package telemetry wires OpenTelemetry tracing and metrics into the
// engine's ambient stack. It is a trimmed port of the teacher's
// internal/observability.InitOTel (OTLP/HTTP trace and metric exporters,
// installed as the global providers) without the teacher's host-resource
// metrics collector, which has no analogue in this engine.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config names the OTLP/HTTP collector this process exports to, plus the
// resource attributes attached to every span and metric point.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
}

// Init configures the trace and metric exporters and installs them as the
// global providers every Tracer/Meter call below resolves against. If
// cfg.OTLPEndpoint is empty, Init leaves the no-op global providers in
// place and returns a no-op shutdown, so every instrumented call site
// stays safe to invoke whether or not a collector is configured.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: init trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: init metric exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(shutdownCtx context.Context) error {
		var first error
		if err := mp.Shutdown(shutdownCtx); err != nil {
			first = err
		}
		if err := tp.Shutdown(shutdownCtx); err != nil && first == nil {
			first = err
		}
		return first
	}, nil
}

// Tracer returns the named tracer from the globally installed provider (a
// real one after Init, a no-op before it or if Init was never called).
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// Meter returns the named meter from the globally installed provider.
func Meter(name string) metric.Meter { return otel.Meter(name) }
