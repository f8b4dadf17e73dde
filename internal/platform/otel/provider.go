// Package otel wires OpenTelemetry tracing for the service binaries.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// noopShutdown is returned when tracing is disabled so callers can
// defer shutdown unconditionally.
func noopShutdown(context.Context) error { return nil }

// Setup registers a global OTLP/HTTP trace provider for serviceName and
// returns the shutdown function that flushes pending spans.
//
// Tracing is opt-in: without BRINK_OTEL_ENDPOINT, or with
// BRINK_OTEL_ENABLED set to "false", nothing is registered and the
// returned shutdown is a no-op.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	if strings.EqualFold(os.Getenv("BRINK_OTEL_ENABLED"), "false") {
		return noopShutdown, nil
	}
	endpoint := os.Getenv("BRINK_OTEL_ENDPOINT")
	if endpoint == "" {
		return noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noopShutdown, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noopShutdown, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}
