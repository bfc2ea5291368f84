// Package observability provides OpenTelemetry tracing for recordflow runs.
//
// The library creates spans through the global tracer provider, which is a
// no-op until InitTracing installs an SDK provider. The command line
// front-end calls InitTracing when tracing is enabled in the job file.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of recordflow spans
const TracerName = "github.com/ajitpratap0/recordflow"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	// Output receives pretty printed spans, stderr when nil
	Output       io.Writer
	BatchTimeout time.Duration
}

// InitTracing installs a global tracer provider exporting spans to the
// configured output. The returned function flushes and stops the provider.
func InitTracing(ctx context.Context, config TracingConfig) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	// Configure sampling
	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// RunSpan wraps the span of one pipeline run
type RunSpan struct {
	span trace.Span
}

// StartRun starts the span of a pipeline run named after the pipeline
func StartRun(ctx context.Context, pipeline, runID string) (context.Context, *RunSpan) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.name", pipeline),
			attribute.String("pipeline.run_id", runID),
		))
	return ctx, &RunSpan{span: span}
}

// RecordFailure adds an event for a per-record failure
func (s *RunSpan) RecordFailure(number uint64, kind, message string) {
	s.span.AddEvent("record.failure", trace.WithAttributes(
		attribute.Int64("record.number", int64(number)),
		attribute.String("error.kind", kind),
		attribute.String("error.message", message),
	))
}

// End sets the outcome attributes and ends the span. A non-nil fatal error
// marks the span as failed.
func (s *RunSpan) End(outcome string, read, written, failed uint64, fatal error) {
	s.span.SetAttributes(
		attribute.String("pipeline.outcome", outcome),
		attribute.Int64("pipeline.records_read", int64(read)),
		attribute.Int64("pipeline.records_written", int64(written)),
		attribute.Int64("pipeline.records_failed", int64(failed)),
	)
	if fatal != nil {
		s.span.RecordError(fatal)
		s.span.SetStatus(codes.Error, fatal.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
