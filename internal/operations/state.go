package operations

import (
	"sync"
	"time"

	"loanrecovery/internal/dataset"
	"loanrecovery/internal/recovery"
	"loanrecovery/pkg/contracts/domain"
)

// RunState carries one pipeline run: its status, the per-step states and the
// tables each step hands to the next.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	Params recovery.Params `json:"params"`

	// Step data. Each field is written by exactly one step and read by the
	// steps after it.
	Table     *dataset.Table             `json:"-"`
	Records   []domain.BorrowerRecord    `json:"-"`
	Segmented []domain.SegmentedBorrower `json:"-"`
	Risk      []domain.RiskAssessment    `json:"-"`

	Error error `json:"-"`
}

// NewRunState creates a pending run over table.
func NewRunState(id string, table *dataset.Table, params recovery.Params) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Params:    params,
		Table:     table,
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed and drops every intermediate table.
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
	r.Records = nil
	r.Segmented = nil
	r.Risk = nil
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel(err error) {
	r.Fail(err)
	r.mu.Lock()
	r.Status = RunStatusCancelled
	r.mu.Unlock()
}

// GetStatus returns the run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// GetStage returns the state of a specific Step
func (r *RunState) GetStage(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[stepID]
}

// SetStage updates the state of a specific Step
func (r *RunState) SetStage(stepID string, state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps[stepID] = state
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// Summary returns the JSON view of the run.
func (r *RunState) Summary() RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := RunSummary{
		ID:        r.ID,
		Status:    r.Status,
		Steps:     make(map[string]*StepState, len(r.Steps)),
		TestRows:  len(r.Risk),
		StartedAt: r.StartTime,
	}
	if r.EndTime != nil {
		s.Duration = r.EndTime.Sub(r.StartTime)
	} else {
		s.Duration = time.Since(r.StartTime)
	}
	if r.Table != nil {
		s.Rows = r.Table.Len()
	}
	if opErr, ok := AsOperationError(r.Error); ok {
		s.Error = opErr
	}
	for k, v := range r.Steps {
		v.mu.RLock()
		s.Steps[k] = &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
		}
		v.mu.RUnlock()
	}
	return s
}
