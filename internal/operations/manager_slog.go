package operations

import (
	"context"
	"log/slog"
	"time"
)

// logOperationStart logs the start of a pipeline run
func (m *Manager) logOperationStart(ctx context.Context, operationID, sessionID string, rows int) {
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", operationID),
		slog.String("session_id", sessionID),
		slog.Int("rows", rows))
}

// logOperationComplete logs the completion of a pipeline run
func (m *Manager) logOperationComplete(ctx context.Context, operationID string, duration time.Duration, status string) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

// logOperationError logs a failed pipeline run
func (m *Manager) logOperationError(ctx context.Context, operationID string, err *OperationError) {
	m.logger.ErrorContext(ctx, "operation_error",
		slog.String("operation_id", operationID),
		slog.String("error_kind", string(err.Type)),
		slog.String("step", err.Step),
		slog.String("error", err.Message))
}

func (m *Manager) logStageStart(ctx context.Context, operationID, stepID string) {
	m.logger.DebugContext(ctx, "stage_start",
		slog.String("operation_id", operationID),
		slog.String("step", stepID))
}

func (m *Manager) logStageComplete(ctx context.Context, operationID, stepID string, duration time.Duration) {
	m.logger.InfoContext(ctx, "stage_completed",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStageError(ctx context.Context, operationID, stepID string, duration time.Duration, err *OperationError) {
	m.logger.ErrorContext(ctx, "stage_failed",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.String("error_kind", string(err.Type)),
		slog.Duration("duration", duration),
		slog.String("error", err.Error()))
}
