// Package telemetry wires the OpenTelemetry tracer provider used by the
// store package. It owns provider setup only; callers get
// their tracer via Tracer(name), the same as any other otel consumer.
package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether tracing is enabled and how spans are sampled.
// There is deliberately no exporter endpoint here: wiring a concrete
// OTLP collector is an application deployment concern, not something
// this package should hardcode.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SamplerType is "always" (default), "never", or "ratio".
	SamplerType  string
	SamplerRatio float64
}

// InitTracer installs a global TracerProvider built from cfg and returns
// a shutdown func to flush and release it. If cfg.Enabled is false,
// InitTracer installs nothing and returns a no-op shutdown.
func InitTracer(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func sampler(cfg Config) sdktrace.Sampler {
	switch cfg.SamplerType {
	case "never":
		return sdktrace.NeverSample()
	case "ratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerRatio))
	default:
		return sdktrace.AlwaysSample()
	}
}

// Tracer returns a tracer scoped to name, reading whatever TracerProvider
// is currently installed (a no-op one until InitTracer runs with
// Enabled: true).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
