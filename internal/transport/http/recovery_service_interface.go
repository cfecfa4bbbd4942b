package http

import (
	"context"
	"io"

	"loanrecovery/internal/services"
	"loanrecovery/internal/session"
	"loanrecovery/pkg/contracts/domain"
)

// RecoveryServiceInterface defines the session and pipeline operations the
// handlers need. *services.RecoveryService implements it.
type RecoveryServiceInterface interface {
	CreateSession(ctx context.Context) session.Snapshot
	Session(id string) (session.Snapshot, error)
	ListSessions() []session.Snapshot
	ResetSession(ctx context.Context, id string) (session.Snapshot, error)

	Upload(ctx context.Context, id, filename string, r io.Reader) (*services.RunResult, error)
	Sample(ctx context.Context, id string, rows int) (*services.RunResult, error)

	Data(id string, limit int) (*services.DataView, error)
	Segments(id string, limit int) (*services.SegmentsView, error)
	Risk(id string, limit int) (*services.RiskView, error)
	Insight(id, kind string) (interface{}, error)
	ReportRows(id string) ([]domain.RiskAssessment, error)
}

var _ RecoveryServiceInterface = (*services.RecoveryService)(nil)
