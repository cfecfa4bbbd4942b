package operations

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"loanrecovery/internal/dataset"
	"loanrecovery/internal/session"
	"loanrecovery/pkg/contracts/domain"
)

// snapshotRetention is how long finished run snapshots stay queryable.
const snapshotRetention = time.Hour

// Outcome is the result of one pipeline run. Either Err is set and both
// tables are nil, or Err is nil and both tables come from this run.
type Outcome struct {
	RunID     string
	Segmented []domain.SegmentedBorrower
	Risk      []domain.RiskAssessment
	Err       *OperationError
	Summary   RunSummary
}

// Manager orchestrates pipeline execution
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	publisher   ResultPublisher
	logger      *slog.Logger
}

// NewManager creates a manager running the default recovery steps.
func NewManager(hub WebSocketHub, config *Config, logger *slog.Logger) *Manager {
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// The global meter provider is a no-op until telemetry is initialised.
	tracer, _ := NewOperationTracer(nil)

	return &Manager{
		registry:    NewDefaultRegistry(),
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, logger),
		tracer:      tracer,
		logger:      logger,
	}
}

// SetTracer replaces the OpenTelemetry instrumentation
func (m *Manager) SetTracer(tracer *OperationTracer) {
	if tracer != nil {
		m.tracer = tracer
	}
}

// SetPublisher sets the sink for scored borrowers of successful runs
func (m *Manager) SetPublisher(p ResultPublisher) {
	m.publisher = p
}

// SetRegistry replaces the step registry
func (m *Manager) SetRegistry(r *Registry) {
	if r != nil {
		m.registry = r
	}
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Close stops the status broadcaster
func (m *Manager) Close() {
	m.broadcaster.Stop()
}

// Execute runs every step over table and returns the outcome.
func (m *Manager) Execute(ctx context.Context, table *dataset.Table) *Outcome {
	return m.execute(ctx, "", table)
}

// Process resets sess, runs the pipeline over table and stores the outcome
// in sess: both tables on success, the classified error otherwise.
func (m *Manager) Process(ctx context.Context, sess *session.Session, table *dataset.Table) *session.Session {
	m.ProcessOutcome(ctx, sess, table)
	return sess
}

// ProcessOutcome is Process returning the run outcome, whose Err keeps the
// error details the session only stores as kind and message.
func (m *Manager) ProcessOutcome(ctx context.Context, sess *session.Session, table *dataset.Table) *Outcome {
	sess.Reset()

	out := m.execute(ctx, sess.ID(), table)
	status := string(RunStatusCompleted)
	if out.Err != nil {
		sess.Fail(string(out.Err.Type), out.Err.Message)
		status = string(RunStatusFailed)
	} else {
		source := ""
		if table != nil {
			source = table.Source
		}
		sess.Apply(session.Result{
			Source:    source,
			Raw:       table,
			Segmented: out.Segmented,
			Risk:      out.Risk,
		})
		m.publish(ctx, out)
	}

	if m.hub != nil {
		m.hub.BroadcastUpdate(EventTypeSessionUpdated, sess.ID(), status, sess.Snapshot())
	}
	return out
}

func (m *Manager) publish(ctx context.Context, out *Outcome) {
	if m.publisher == nil || len(out.Risk) == 0 {
		return
	}
	if err := m.publisher.PublishAssessments(ctx, out.RunID, out.Risk); err != nil {
		m.logger.WarnContext(ctx, "publish_failed",
			slog.String("operation_id", out.RunID),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) execute(ctx context.Context, sessionID string, table *dataset.Table) *Outcome {
	runID := uuid.New().String()
	state := NewRunState(runID, table, m.config.Params)

	rows := 0
	if table != nil {
		rows = table.Len()
	}
	m.logOperationStart(ctx, runID, sessionID, rows)

	ctx, span := m.tracer.TraceOperationExecution(ctx, runID, rows)
	defer span.End()

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		opErr := NewPipelineError("", err.Error(), err)
		state.Fail(opErr)
		m.tracer.RecordOperationCompletion(ctx, span, runID, state.Duration(), 0, opErr)
		m.logOperationError(ctx, runID, opErr)
		return &Outcome{RunID: runID, Err: opErr, Summary: state.Summary()}
	}

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	m.broadcaster.CreateOperation(runID, sessionID, steps)

	state.Start()
	m.broadcaster.StartOperation(runID)

	opErr := m.executeSequential(ctx, state, steps)
	defer m.broadcaster.CleanupOldOperations(snapshotRetention)

	if opErr != nil {
		if ctx.Err() != nil {
			state.Cancel(opErr)
			m.broadcaster.CancelOperation(runID, opErr)
		} else {
			state.Fail(opErr)
			m.broadcaster.FailOperation(runID, opErr)
		}
		m.tracer.RecordOperationCompletion(ctx, span, runID, state.Duration(), 0, opErr)
		m.logOperationError(ctx, runID, opErr)
		return &Outcome{RunID: runID, Err: opErr, Summary: state.Summary()}
	}

	state.Complete()
	m.broadcaster.CompleteOperation(runID, "Operation completed successfully")
	m.tracer.RecordOperationCompletion(ctx, span, runID, state.Duration(), len(state.Risk), nil)
	m.logOperationComplete(ctx, runID, state.Duration(), string(RunStatusCompleted))

	return &Outcome{
		RunID:     runID,
		Segmented: state.Segmented,
		Risk:      state.Risk,
		Summary:   state.Summary(),
	}
}

// executeSequential executes steps one by one, stopping at the first failure
func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) *OperationError {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.tracer.RecordCancellation(ctx, step.ID())
			m.skipRemaining(state, steps[i:], "Operation cancelled")
			return NewCancellationError(step.ID(), err)
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(steps)))

		if opErr := m.executeStep(ctx, state, step); opErr != nil {
			if ctx.Err() != nil {
				m.tracer.RecordCancellation(ctx, step.ID())
			}
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("Step %s failed", step.ID()))
			return opErr
		}
	}

	m.logger.InfoContext(ctx, "all_stages_completed",
		slog.String("operation_id", state.ID))
	return nil
}

// executeStep runs a single step once. Panics and errors are classified.
func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step) *OperationError {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewPipelineError(step.ID(), "step state not found", nil)
	}

	stepCtx, span := m.tracer.TraceStepExecution(ctx, state.ID, step.ID())
	defer span.End()

	stepState.Start()
	m.broadcaster.StartStep(state.ID, step.ID())
	m.logStageStart(ctx, state.ID, step.ID())

	startTime := time.Now()
	opErr := m.runStep(stepCtx, state, step)
	duration := time.Since(startTime)

	m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, opErr)

	if opErr != nil {
		stepState.Fail(opErr)
		m.broadcaster.FailStep(state.ID, step.ID(), opErr)
		m.logStageError(ctx, state.ID, step.ID(), duration, opErr)
		return opErr
	}

	stepState.Complete()
	m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed successfully", stepState.MetadataCopy())
	m.logStageComplete(ctx, state.ID, step.ID(), duration)
	return nil
}

func (m *Manager) runStep(ctx context.Context, state *RunState, step Step) (opErr *OperationError) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "stage_panic",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			opErr = NewPipelineError(step.ID(), fmt.Sprint(r), nil)
		}
	}()

	if err := step.Validate(state); err != nil {
		return NewPipelineError(step.ID(), err.Error(), err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, m.config.GetStepTimeout(step.ID()))
	defer cancel()

	err := step.Execute(stepCtx, state)
	if err == nil {
		if ctx.Err() != nil {
			return NewCancellationError(step.ID(), ctx.Err())
		}
		return nil
	}
	if ctx.Err() != nil {
		return NewCancellationError(step.ID(), ctx.Err())
	}
	return WrapError(err, step.ID(), "")
}

// skipRemaining marks steps that will not run
func (m *Manager) skipRemaining(state *RunState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
			m.broadcaster.SkipStep(state.ID, step.ID(), reason)
		}
	}
}
