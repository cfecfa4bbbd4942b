package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"loanrecovery/internal/config"
	"loanrecovery/internal/dataset"
	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/internal/insights"
	"loanrecovery/internal/operations"
	"loanrecovery/internal/recovery"
	"loanrecovery/internal/session"
	"loanrecovery/pkg/contracts/domain"
)

// Pipeline runs one batch over a session. *operations.Manager implements it.
type Pipeline interface {
	ProcessOutcome(ctx context.Context, sess *session.Session, table *dataset.Table) *operations.Outcome
}

// RunResult is the response to an upload or a sample run
type RunResult struct {
	Session session.Snapshot      `json:"session"`
	Run     operations.RunSummary `json:"run"`
}

// SegmentsView is the segmentation page: a preview and the full distribution
type SegmentsView struct {
	Total        int                     `json:"total"`
	Rows         []insights.SegmentPoint `json:"rows"`
	Distribution []domain.SegmentCount   `json:"distribution"`
}

// RiskView is the scored test partition preview
type RiskView struct {
	Total    int                     `json:"total"`
	HighRisk int                     `json:"predicted_high_risk"`
	Rows     []domain.RiskAssessment `json:"rows"`
}

// DataView is the raw upload preview
type DataView struct {
	Source  string     `json:"source"`
	Total   int        `json:"total"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// RecoveryService manages dataset sessions and their pipeline runs
type RecoveryService struct {
	store      *session.Store
	pipeline   Pipeline
	seed       int64
	sampleRows int
	logger     *slog.Logger
}

// NewRecoveryService creates the service. Samples use the pipeline seed and
// default to cfg.SampleRows rows.
func NewRecoveryService(store *session.Store, pipeline Pipeline, cfg config.PipelineConfig, logger *slog.Logger) *RecoveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryService{
		store:      store,
		pipeline:   pipeline,
		seed:       cfg.Seed,
		sampleRows: cfg.SampleRows,
		logger:     infrastructure.WithComponent(logger, "recovery"),
	}
}

// CreateSession opens an empty session
func (s *RecoveryService) CreateSession(ctx context.Context) session.Snapshot {
	sess := s.store.Create()
	ctx = infrastructure.WithSessionID(ctx, sess.ID())
	s.log(ctx).InfoContext(ctx, "session created")
	return sess.Snapshot()
}

// Session returns the current state of a session
func (s *RecoveryService) Session(id string) (session.Snapshot, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// ListSessions returns every session
func (s *RecoveryService) ListSessions() []session.Snapshot {
	return s.store.List()
}

// ResetSession drops the data and results of a session
func (s *RecoveryService) ResetSession(ctx context.Context, id string) (session.Snapshot, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	sess.Reset()
	ctx = infrastructure.WithSessionID(ctx, id)
	s.log(ctx).InfoContext(ctx, "session reset")
	return sess.Snapshot(), nil
}

// Upload parses a CSV or XLSX file and runs the pipeline over it
func (s *RecoveryService) Upload(ctx context.Context, id, filename string, r io.Reader) (*RunResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	ctx = infrastructure.WithSessionID(ctx, id)

	table, err := dataset.ReadFile(filename, r)
	if err != nil {
		infrastructure.WithError(s.log(ctx), err).WarnContext(ctx, "upload rejected",
			slog.String("filename", filename))
		return nil, uploadError(err)
	}

	s.log(ctx).InfoContext(ctx, "upload parsed",
		slog.String("filename", table.Source),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Header)))
	return s.run(ctx, sess, table)
}

// Sample generates a seeded synthetic portfolio and runs the pipeline over it.
// rows <= 0 uses the configured default.
func (s *RecoveryService) Sample(ctx context.Context, id string, rows int) (*RunResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rows <= 0 {
		rows = s.sampleRows
	}

	ctx = infrastructure.WithSessionID(ctx, id)

	table := dataset.GenerateSample(rows, s.seed)
	s.log(ctx).InfoContext(ctx, "sample generated",
		slog.Int("rows", rows),
		slog.Int64("seed", s.seed))
	return s.run(ctx, sess, table)
}

// log scopes the service logger to the session in ctx
func (s *RecoveryService) log(ctx context.Context) *slog.Logger {
	return infrastructure.LoggerWithContext(ctx, s.logger)
}

func (s *RecoveryService) run(ctx context.Context, sess *session.Session, table *dataset.Table) (*RunResult, error) {
	out := s.pipeline.ProcessOutcome(ctx, sess, table)
	if out.Err != nil {
		return nil, out.Err
	}
	return &RunResult{Session: sess.Snapshot(), Run: out.Summary}, nil
}

// ready returns the snapshot of a session holding results
func (s *RecoveryService) ready(id string) (session.Snapshot, error) {
	snap, err := s.Session(id)
	if err != nil {
		return snap, err
	}
	if !snap.Ready {
		return snap, notReady(snap)
	}
	return snap, nil
}

// Data previews the first limit rows of the uploaded table
func (s *RecoveryService) Data(id string, limit int) (*DataView, error) {
	snap, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	head := snap.Raw.Head(limit)
	return &DataView{
		Source:  snap.Source,
		Total:   snap.Rows,
		Columns: head.Header,
		Rows:    head.Rows,
	}, nil
}

// Segments previews the segmented borrowers and counts every segment
func (s *RecoveryService) Segments(id string, limit int) (*SegmentsView, error) {
	snap, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	return &SegmentsView{
		Total:        len(snap.Segmented),
		Rows:         insights.SegmentScatter(snap.Segmented, limit),
		Distribution: recovery.SegmentCounts(snap.Segmented),
	}, nil
}

// Risk previews the scored test partition in split order
func (s *RecoveryService) Risk(id string, limit int) (*RiskView, error) {
	snap, err := s.ready(id)
	if err != nil {
		return nil, err
	}

	view := &RiskView{Total: len(snap.Risk), Rows: head(snap.Risk, limit)}
	for _, r := range snap.Risk {
		if r.PredictedHighRisk {
			view.HighRisk++
		}
	}
	return view, nil
}

// Insight computes one exploration view over every borrower of the session
func (s *RecoveryService) Insight(id, kind string) (interface{}, error) {
	k, err := insights.ParseKind(kind)
	if err != nil {
		return nil, apierrors.NewWithDetails(apierrors.ErrInvalidParameter.StatusCode,
			apierrors.ErrInvalidParameter.ErrorCode,
			fmt.Sprintf("unknown insight %q", kind),
			map[string]interface{}{"allowed": insights.Kinds()})
	}

	snap, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	return insights.Compute(k, insights.Records(snap.Segmented))
}

// ReportRows returns every scored borrower of the session for export
func (s *RecoveryService) ReportRows(id string) ([]domain.RiskAssessment, error) {
	snap, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	return snap.Risk, nil
}

// head returns at most limit leading rows; limit <= 0 returns all of them
func head[T any](rows []T, limit int) []T {
	if limit <= 0 || limit > len(rows) {
		return rows
	}
	return rows[:limit]
}
