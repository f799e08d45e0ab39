package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory span exporter for test assertions.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestInitTraceProviderNoopWhenEmpty(t *testing.T) {
	shutdown, err := InitTraceProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Should be a no-op shutdown
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestStartLoginSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartLoginSpan(ctx, "johndoe")
	EndLoginSpan(span, true)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "security.login" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "security.login")
	}

	foundUser := false
	foundOutcome := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "buildgate.user" && a.Value.AsString() == "johndoe" {
			foundUser = true
		}
		if string(a.Key) == "buildgate.login_ok" && a.Value.AsBool() {
			foundOutcome = true
		}
	}
	if !foundUser {
		t.Error("missing buildgate.user attribute")
	}
	if !foundOutcome {
		t.Error("missing buildgate.login_ok attribute")
	}
}

func TestStartPermissionSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartPermissionSpan(ctx, "johndoe", "forceBuild")
	EndPermissionSpan(span, false)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "security.check_permission" {
		t.Errorf("span name = %q", spans[0].Name)
	}

	foundAction := false
	foundDecision := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "buildgate.action" && a.Value.AsString() == "forceBuild" {
			foundAction = true
		}
		if string(a.Key) == "buildgate.allowed" && !a.Value.AsBool() {
			foundDecision = true
		}
	}
	if !foundAction {
		t.Error("missing buildgate.action attribute")
	}
	if !foundDecision {
		t.Error("missing buildgate.allowed attribute")
	}
}

func TestNestedSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	ctx, loginSpan := StartLoginSpan(ctx, "johndoe")
	_, sessSpan := StartSessionSpan(ctx, "add")
	sessSpan.End()
	loginSpan.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	sessStub := spans[0] // inner span ends first
	loginStub := spans[1]

	if sessStub.Parent.TraceID() != loginStub.SpanContext.TraceID() {
		t.Error("session span should share trace ID with login span")
	}
	if !sessStub.Parent.SpanID().IsValid() {
		t.Error("session span should have a valid parent span ID")
	}
}
