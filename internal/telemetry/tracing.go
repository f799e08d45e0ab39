// Package telemetry configures OpenTelemetry tracing for the security
// subsystem.
//
// Custom span attributes use the `buildgate.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/ccnet/buildgate"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC exporter.
// If endpoint is empty, tracing is disabled (noop provider is used).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("buildgate"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartLoginSpan creates the span covering a login attempt. The user
// name recorded is the hint extracted from credentials, not proof of
// identity.
func StartLoginSpan(ctx context.Context, userName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "security.login",
		trace.WithAttributes(
			attribute.String("buildgate.user", userName),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndLoginSpan enriches the login span with the outcome.
func EndLoginSpan(span trace.Span, succeeded bool) {
	span.SetAttributes(attribute.Bool("buildgate.login_ok", succeeded))
	span.End()
}

// StartPermissionSpan creates a span for a permission check.
func StartPermissionSpan(ctx context.Context, userName, action string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "security.check_permission",
		trace.WithAttributes(
			attribute.String("buildgate.user", userName),
			attribute.String("buildgate.action", action),
		),
	)
}

// EndPermissionSpan enriches the permission span with the decision.
func EndPermissionSpan(span trace.Span, allowed bool) {
	span.SetAttributes(attribute.Bool("buildgate.allowed", allowed))
	span.End()
}

// StartSessionSpan creates a span for a session cache operation
// (add, remove, purge).
func StartSessionSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "security.session."+op)
}
