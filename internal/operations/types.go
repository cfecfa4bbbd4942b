package operations

import "time"

// Step identifiers in execution order.
const (
	StepIDValidateSchema   = "validate_schema"
	StepIDCoerceFeatures   = "coerce_features"
	StepIDSegmentBorrowers = "segment_borrowers"
	StepIDClassifyRisk     = "classify_risk"
	StepIDAssignStrategy   = "assign_strategy"
)

// Human-readable step names
const (
	StepNameValidateSchema   = "Schema Validation"
	StepNameCoerceFeatures   = "Feature Coercion"
	StepNameSegmentBorrowers = "Borrower Segmentation"
	StepNameClassifyRisk     = "Risk Classification"
	StepNameAssignStrategy   = "Strategy Assignment"
)

// Event types published to the WebSocket hub
const (
	EventTypeOperationSnapshot = "operation:snapshot"
	EventTypeSessionUpdated    = "session:updated"
)

// RunStatus represents the status of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepIDs returns the pipeline step ids in execution order.
func StepIDs() []string {
	return []string{
		StepIDValidateSchema,
		StepIDCoerceFeatures,
		StepIDSegmentBorrowers,
		StepIDClassifyRisk,
		StepIDAssignStrategy,
	}
}

// RunSummary is the JSON view of a finished run.
type RunSummary struct {
	ID        string                `json:"id"`
	Status    RunStatus             `json:"status"`
	Duration  time.Duration         `json:"duration"`
	Steps     map[string]*StepState `json:"steps"`
	Error     *OperationError       `json:"error,omitempty"`
	Rows      int                   `json:"rows"`
	TestRows  int                   `json:"test_rows"`
	StartedAt time.Time             `json:"started_at"`
}
