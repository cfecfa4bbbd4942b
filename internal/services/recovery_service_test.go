package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loanrecovery/internal/config"
	"loanrecovery/internal/dataset"
	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/insights"
	"loanrecovery/internal/operations"
	"loanrecovery/internal/session"
	"loanrecovery/internal/shared/testutil"
	"loanrecovery/pkg/contracts/domain"
)

type nopHub struct{}

func (nopHub) BroadcastUpdate(eventType, step, status string, data interface{}) {}

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) ProcessOutcome(ctx context.Context, sess *session.Session, table *dataset.Table) *operations.Outcome {
	args := m.Called(ctx, sess, table)
	return args.Get(0).(*operations.Outcome)
}

func newTestService(t *testing.T) (*RecoveryService, *session.Store) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Pipeline
	manager := operations.NewManager(nopHub{}, operations.ConfigFromPipeline(cfg), logger)
	t.Cleanup(manager.Close)

	store := session.NewStore()
	return NewRecoveryService(store, manager, cfg, logger), store
}

func requireAPIError(t *testing.T, err error, status int, code string) *apierrors.APIError {
	t.Helper()
	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, status, apiErr.StatusCode)
	assert.Equal(t, code, apiErr.ErrorCode)
	return apiErr
}

func TestRecoveryService_SessionLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	snap := svc.CreateSession(ctx)
	assert.NotEmpty(t, snap.ID)
	assert.False(t, snap.Ready)
	assert.Equal(t, 1, store.Len())

	got, err := svc.Session(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Len(t, svc.ListSessions(), 1)

	_, err = svc.Session("missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = svc.ResetSession(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRecoveryService_Sample(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	res, err := svc.Sample(ctx, id, 0)
	require.NoError(t, err)
	assert.True(t, res.Session.Ready)
	assert.Equal(t, dataset.DefaultSampleRows, res.Session.Rows)
	assert.Equal(t, 20, res.Session.TestRows)
	assert.Equal(t, operations.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 1, res.Session.Runs)

	again, err := svc.Sample(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, res.Session.Risk, again.Session.Risk, "same seed must give the same scores")
}

func TestRecoveryService_Upload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	res, err := svc.Upload(ctx, id, "loans.csv", bytes.NewReader(testutil.SampleCSV(t, 100, 3)))
	require.NoError(t, err)
	assert.Equal(t, "loans.csv", res.Session.Source)
	assert.Equal(t, 100, res.Session.Rows)

	data, err := svc.Data(id, 50)
	require.NoError(t, err)
	assert.Equal(t, 100, data.Total)
	assert.Len(t, data.Rows, 50)
	assert.Equal(t, res.Session.Columns, data.Columns)

	segments, err := svc.Segments(id, 20)
	require.NoError(t, err)
	assert.Equal(t, 100, segments.Total)
	assert.Len(t, segments.Rows, 20)
	require.Len(t, segments.Distribution, domain.NumSegments)
	sum := 0
	for _, c := range segments.Distribution {
		sum += c.Count
	}
	assert.Equal(t, 100, sum)

	risk, err := svc.Risk(id, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, risk.Total)
	assert.Len(t, risk.Rows, 5)
	assert.LessOrEqual(t, risk.HighRisk, 20)

	rows, err := svc.ReportRows(id)
	require.NoError(t, err)
	assert.Len(t, rows, 20)
}

func TestRecoveryService_UploadErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Upload(ctx, "missing", "loans.csv", strings.NewReader("a\n1\n"))
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := svc.Upload(ctx, id, "loans.pdf", strings.NewReader("a\n1\n"))
		requireAPIError(t, err, http.StatusBadRequest, "UNSUPPORTED_FORMAT")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := svc.Upload(ctx, id, "loans.csv", strings.NewReader(""))
		requireAPIError(t, err, http.StatusBadRequest, "UNREADABLE_UPLOAD")
	})

	t.Run("oversized body passes through", func(t *testing.T) {
		tooBig := &http.MaxBytesError{Limit: 10}
		assert.Same(t, error(tooBig), uploadError(tooBig))
	})

	t.Run("missing columns fail the run", func(t *testing.T) {
		table := testutil.DropColumns(dataset.GenerateSample(100, 1), domain.ColAge)
		_, err := svc.Upload(ctx, id, "loans.csv", bytes.NewReader(testutil.TableCSV(t, table)))

		opErr, ok := operations.AsOperationError(err)
		require.True(t, ok)
		assert.Equal(t, operations.ErrorTypeSchema, opErr.Type)

		_, err = svc.Data(id, 10)
		apiErr := requireAPIError(t, err, http.StatusConflict, "SESSION_NOT_READY")
		details, ok := apiErr.Details.(map[string]string)
		require.True(t, ok)
		assert.Equal(t, string(operations.ErrorTypeSchema), details["error_kind"])
	})
}

func TestRecoveryService_NotReady(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	_, err := svc.Risk(id, 10)
	apiErr := requireAPIError(t, err, http.StatusConflict, "SESSION_NOT_READY")
	assert.Nil(t, apiErr.Details)

	_, err = svc.ReportRows(id)
	requireAPIError(t, err, http.StatusConflict, "SESSION_NOT_READY")
}

func TestRecoveryService_Reset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	_, err := svc.Sample(ctx, id, 100)
	require.NoError(t, err)

	snap, err := svc.ResetSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, snap.Ready)
	assert.Zero(t, snap.Rows)
	assert.Nil(t, snap.LastError)

	_, err = svc.Segments(id, 20)
	requireAPIError(t, err, http.StatusConflict, "SESSION_NOT_READY")
}

func TestRecoveryService_Insight(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	_, err := svc.Insight(id, "nope")
	apiErr := requireAPIError(t, err, http.StatusBadRequest, "INVALID_PARAMETER")
	assert.Contains(t, apiErr.Message, "nope")

	_, err = svc.Insight(id, string(insights.KindLoanDistribution))
	requireAPIError(t, err, http.StatusConflict, "SESSION_NOT_READY")

	_, err = svc.Sample(ctx, id, 100)
	require.NoError(t, err)

	for _, kind := range insights.Kinds() {
		view, err := svc.Insight(id, string(kind))
		require.NoError(t, err, kind)
		assert.NotNil(t, view, kind)
	}

	view, err := svc.Insight(id, string(insights.KindLoanDistribution))
	require.NoError(t, err)
	dist, ok := view.(insights.Distribution)
	require.True(t, ok)
	assert.Equal(t, 100, dist.Summary.Count)
}

func TestRecoveryService_PipelineFailureReturnsOperationError(t *testing.T) {
	pipeline := &mockPipeline{}
	store := session.NewStore()
	svc := NewRecoveryService(store, pipeline, config.Default().Pipeline, nil)
	id := svc.CreateSession(context.Background()).ID

	opErr := operations.NewModelError(operations.StepIDClassifyRisk, errors.New("single class"))
	pipeline.On("ProcessOutcome", mock.Anything, mock.AnythingOfType("*session.Session"), mock.AnythingOfType("*dataset.Table")).
		Return(&operations.Outcome{RunID: "run-1", Err: opErr}).Once()

	_, err := svc.Sample(context.Background(), id, 15)
	require.Error(t, err)
	assert.Same(t, opErr, err)
	pipeline.AssertExpectations(t)

	table := pipeline.Calls[0].Arguments.Get(2).(*dataset.Table)
	assert.Equal(t, 15, table.Len())
}

func TestRecoveryService_LogsCarrySessionID(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	pipeline := &mockPipeline{}
	pipeline.On("ProcessOutcome", mock.Anything, mock.AnythingOfType("*session.Session"), mock.AnythingOfType("*dataset.Table")).
		Return(&operations.Outcome{RunID: "run-1"})
	svc := NewRecoveryService(session.NewStore(), pipeline, config.Default().Pipeline, logger)
	ctx := context.Background()

	id := svc.CreateSession(ctx).ID
	_, err := svc.Sample(ctx, id, 20)
	require.NoError(t, err)
	_, err = svc.Upload(ctx, id, "loans.pdf", strings.NewReader("%PDF"))
	require.Error(t, err)
	_, err = svc.ResetSession(ctx, id)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range logs.GetRecords() {
		seen[r.Message] = true
		assert.Equal(t, id, r.Attrs["session_id"], r.Message)
		assert.Equal(t, "recovery", r.Attrs["component"], r.Message)
		if r.Message == "upload rejected" {
			assert.NotEmpty(t, r.Attrs["error"])
		}
	}
	for _, msg := range []string{"session created", "sample generated", "upload rejected", "session reset"} {
		assert.True(t, seen[msg], msg)
	}
}
