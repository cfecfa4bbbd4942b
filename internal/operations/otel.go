package operations

import (
	"context"
	"fmt"
	"time"

	"loanrecovery/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "loanrecovery.operation"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer          trace.Tracer
	businessMetrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer backed by providers. Without providers
// it falls back to the global (no-op by default) meter.
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	var meter metric.Meter
	if providers != nil && providers.Meter != nil {
		meter = providers.Meter
	} else {
		meter = otel.Meter(TracerName)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &OperationTracer{
		tracer:          otel.Tracer(TracerName),
		businessMetrics: businessMetrics,
	}, nil
}

// TraceOperationExecution creates a span for a whole pipeline run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, rows int) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.Int("operation.rows", rows),
		),
	)

	pt.businessMetrics.OperationExecutionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", "start")),
	)
	pt.businessMetrics.OperationActiveOperations.Add(ctx, 1)

	return ctx, span
}

// TraceStepExecution creates a span for a single step
func (pt *OperationTracer) TraceStepExecution(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion closes out a step span and records its duration
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err *OperationError) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)

	attrs := metric.WithAttributes(
		attribute.String("step_id", stepID),
		attribute.String("status", status),
	)
	pt.businessMetrics.OperationStepsTotal.Add(ctx, 1, attrs)
	pt.businessMetrics.OperationStepDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		infrastructure.RecordError(ctx, err,
			trace.WithAttributes(
				attribute.String("step_id", stepID),
				attribute.String("error.type", string(err.Type)),
			),
		)
		span.SetStatus(codes.Error, err.Message)
		return
	}
	span.SetStatus(codes.Ok, "step completed")
}

// RecordOperationCompletion closes out the run span and records run metrics
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, operationID string, duration time.Duration, scored int, err *OperationError) {
	status := string(RunStatusCompleted)
	if err != nil {
		status = string(RunStatusFailed)
	}

	span.SetAttributes(
		attribute.String("operation.status", status),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
		attribute.Int("operation.scored_borrowers", scored),
	)

	pt.businessMetrics.OperationExecutionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
	pt.businessMetrics.OperationActiveOperations.Add(ctx, -1)

	if err != nil {
		pt.businessMetrics.OperationErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("error_kind", string(err.Type))),
		)
		if err.Step != "" {
			span.SetAttributes(attribute.String("operation.failed_step", err.Step))
		}
		span.SetStatus(codes.Error, err.Message)
		return
	}

	if scored > 0 {
		pt.businessMetrics.BorrowersScored.Add(ctx, int64(scored))
	}
	infrastructure.AddSpanEvent(ctx, "operation.completed", map[string]interface{}{
		"operation_id": operationID,
		"scored":       scored,
		"duration":     duration.Seconds(),
	})
	span.SetStatus(codes.Ok, "operation completed successfully")
}

// RecordCancellation counts a run aborted by its context
func (pt *OperationTracer) RecordCancellation(ctx context.Context, stepID string) {
	pt.businessMetrics.OperationCancellations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("step_id", stepID)),
	)
}
