package operations

import (
	"context"

	"loanrecovery/pkg/contracts/domain"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// ResultPublisher receives the scored borrowers of every successful run.
type ResultPublisher interface {
	PublishAssessments(ctx context.Context, runID string, rows []domain.RiskAssessment) error
}

// StageOptions contains optional dependencies for steps
type StageOptions struct {
	StatusBroadcaster *StatusBroadcaster
}
