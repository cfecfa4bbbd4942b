package operations

import (
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster is the single authority for run status updates.
// It keeps the latest snapshot of every run and pushes each change to the hub.
type StatusBroadcaster struct {
	mu       sync.RWMutex
	runs     map[string]*OperationSnapshot
	hub      WebSocketHub
	logger   *slog.Logger
	updates  chan updateRequest
	stop     chan struct{}
	stopOnce sync.Once
}

// OperationSnapshot represents the complete state of a run at a point in time.
// This is the only structure sent to the frontend.
type OperationSnapshot struct {
	OperationID string         `json:"operation_id"`
	SessionID   string         `json:"session_id,omitempty"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	CurrentStep string         `json:"current_step"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type updateRequest struct {
	operationID string
	updateFunc  func(*OperationSnapshot)
	done        chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*OperationSnapshot),
		hub:     hub,
		logger:  logger,
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates handles all updates sequentially
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	snapshot, exists := sb.runs[req.operationID]
	if !exists {
		now := time.Now()
		snapshot = &OperationSnapshot{
			OperationID: req.operationID,
			Status:      string(RunStatusPending),
			StartedAt:   now,
			UpdatedAt:   now,
			Steps:       []StepSnapshot{},
		}
		sb.runs[req.operationID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	sb.broadcast(snapshot)
}

func isTerminal(status string) bool {
	switch RunStatus(status) {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// broadcast sends a copy of the snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot *OperationSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
	)

	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.OperationID, "update", copySnapshot(snapshot))
}

// UpdateStatus applies updateFunc to a run snapshot and waits for the
// broadcast. Updates after Stop are dropped.
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*OperationSnapshot)) {
	req := updateRequest{
		operationID: operationID,
		updateFunc:  updateFunc,
		done:        make(chan struct{}),
	}

	select {
	case <-sb.stop:
		return
	default:
	}
	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateOperation initializes a run with the given step ids and names.
func (sb *StatusBroadcaster) CreateOperation(operationID, sessionID string, steps []Step) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(RunStatusPending)
		snapshot.SessionID = sessionID
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = StepSnapshot{
				ID:     step.ID(),
				Name:   step.Name(),
				Status: string(StepStatusPending),
			}
		}
		snapshot.Message = "Operation created"
	})
}

// StartOperation marks a run as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(RunStatusRunning)
		snapshot.Message = "Operation started"
	})
}

// StartStep marks a step as active
func (sb *StatusBroadcaster) StartStep(operationID, stepID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = string(StepStatusActive)
			step.Message = "Step started"
			snapshot.CurrentStep = step.Name
		}
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(operationID, stepID, message string, metadata map[string]interface{}) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = string(StepStatusCompleted)
			step.Progress = 100
			step.Message = message
			if metadata != nil {
				step.Metadata = metadata
			}
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(operationID, stepID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = string(StepStatusFailed)
			step.Error = err.Error()
		}
	})
}

// SkipStep marks a step as skipped
func (sb *StatusBroadcaster) SkipStep(operationID, stepID, reason string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = string(StepStatusSkipped)
			step.Message = reason
		}
	})
}

// CompleteOperation marks a run as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(RunStatusCompleted)
		snapshot.CurrentStep = ""
		snapshot.Message = message
		for i := range snapshot.Steps {
			snapshot.Steps[i].Status = string(StepStatusCompleted)
			snapshot.Steps[i].Progress = 100
		}
	})
}

// FailOperation marks a run as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err *OperationError) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(RunStatusFailed)
		snapshot.CurrentStep = ""
		if err != nil {
			snapshot.Error = err.Message
			snapshot.ErrorKind = string(err.Type)
		}
	})
}

// CancelOperation marks a run as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string, err *OperationError) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(RunStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Operation cancelled"
		if err != nil {
			snapshot.Error = err.Message
			snapshot.ErrorKind = string(err.Type)
		}
	})
}

// GetSnapshot returns the current snapshot for a run
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (*OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[operationID]
	if !exists {
		return nil, false
	}
	return copySnapshot(snapshot), true
}

// GetAllSnapshots returns all current run snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*OperationSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*OperationSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		snapshots = append(snapshots, copySnapshot(snapshot))
	}
	return snapshots
}

// CleanupOldOperations removes finished runs older than maxAge
func (sb *StatusBroadcaster) CleanupOldOperations(maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, snapshot := range sb.runs {
		if !isTerminal(snapshot.Status) || snapshot.CompletedAt == nil {
			continue
		}
		if now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			removed++
		}
	}
	if removed > 0 {
		sb.logger.Debug("cleaned up old operations", slog.Int("removed", removed))
	}
	return removed
}

// Stop shuts down the broadcaster
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func findStep(snapshot *OperationSnapshot, stepID string) *StepSnapshot {
	for i := range snapshot.Steps {
		if snapshot.Steps[i].ID == stepID {
			return &snapshot.Steps[i]
		}
	}
	return nil
}

func copySnapshot(s *OperationSnapshot) *OperationSnapshot {
	c := *s
	c.Steps = make([]StepSnapshot, len(s.Steps))
	copy(c.Steps, s.Steps)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
