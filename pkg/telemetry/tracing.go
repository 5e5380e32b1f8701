// Package telemetry sets up optional OpenTelemetry tracing for agentkit
// commands. Tracing is off unless tracing.enabled is set; spans are exported
// over OTLP/HTTP to the endpoint named by OTEL_EXPORTER_OTLP_ENDPOINT.
package telemetry

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ServiceName identifies agentkit in exported traces.
const ServiceName = "agentkit"

// Sampler names accepted by Config.Sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config controls InitTracer.
type Config struct {
	Enabled        bool
	ServiceVersion string
	Sampler        string
	Ratio          float64
}

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracer installs a global tracer provider exporting over OTLP/HTTP.
// With tracing disabled it installs nothing and returns a no-op shutdown.
func InitTracer(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create trace exporter")
	}

	provider := NewProvider(res, sampler(cfg), trace.NewBatchSpanProcessor(
		exporter,
		trace.WithMaxExportBatchSize(512),
		trace.WithBatchTimeout(time.Second),
	))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(provider.Shutdown(ctx), exporter.Shutdown(ctx))
	}, nil
}

// NewProvider builds a tracer provider around a span processor. Tests pass
// an in-memory recorder.
func NewProvider(res *resource.Resource, s trace.Sampler, processor trace.SpanProcessor) *trace.TracerProvider {
	opts := []trace.TracerProviderOption{
		trace.WithSampler(s),
		trace.WithSpanProcessor(processor),
	}
	if res != nil {
		opts = append(opts, trace.WithResource(res))
	}
	return trace.NewTracerProvider(opts...)
}

func sampler(cfg Config) trace.Sampler {
	switch cfg.Sampler {
	case SamplerNever:
		return trace.NeverSample()
	case SamplerRatio:
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.Ratio))
	default:
		return trace.AlwaysSample()
	}
}
