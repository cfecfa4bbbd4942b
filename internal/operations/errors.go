package operations

import (
	"context"
	"errors"
	"fmt"

	"loanrecovery/internal/dataset"
	"loanrecovery/internal/ml"
)

// ErrorType represents the kind of pipeline failure
type ErrorType string

const (
	ErrorTypeSchema   ErrorType = "schema"
	ErrorTypeCoercion ErrorType = "coercion"
	ErrorTypeSplit    ErrorType = "split"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypePipeline ErrorType = "pipeline"
)

// OperationError represents a pipeline-specific error
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewSchemaError reports required columns absent from the upload.
func NewSchemaError(step string, missing []string) *OperationError {
	cause := &dataset.SchemaError{Missing: missing}
	return &OperationError{
		Type:    ErrorTypeSchema,
		Step:    step,
		Message: cause.Error(),
		Cause:   cause,
		Details: map[string]interface{}{
			"missing_columns": missing,
		},
	}
}

// NewCoercionError reports feature cells that could not be parsed.
func NewCoercionError(step string, cause *dataset.CoercionError) *OperationError {
	details := map[string]interface{}{}
	if cause != nil {
		counts := make(map[string]int, len(cause.Columns))
		for _, c := range cause.Columns {
			counts[c.Column] = c.Count
		}
		details["missing_counts"] = counts
		details["first_row"] = cause.FirstRow
		details["first_column"] = cause.FirstCol
		details["first_value"] = cause.FirstValue
	}
	return &OperationError{
		Type:    ErrorTypeCoercion,
		Step:    step,
		Message: dataset.MissingValuesMessage,
		Cause:   cause,
		Details: details,
	}
}

// NewSplitError reports a dataset that cannot be split into stratified partitions.
func NewSplitError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeSplit,
		Step:    step,
		Message: fmt.Sprintf("Unable to split data for risk classification: %v", cause),
		Cause:   cause,
	}
}

// NewModelError reports a clustering or classifier fitting failure.
func NewModelError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeModel,
		Step:    step,
		Message: fmt.Sprintf("Model training failed: %v", cause),
		Cause:   cause,
	}
}

// NewPipelineError reports any other failure: panics, cancellation, bad state.
func NewPipelineError(step, message string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypePipeline,
		Step:    step,
		Message: "Preprocessing error: " + message,
		Cause:   cause,
	}
}

// NewCancellationError reports a run aborted by its context.
func NewCancellationError(step string, cause error) *OperationError {
	return NewPipelineError(step, "operation was cancelled", cause)
}

// GetErrorType returns the error type if it's an OperationError
func GetErrorType(err error) ErrorType {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ""
}

// AsOperationError extracts an OperationError from err.
func AsOperationError(err error) (*OperationError, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

// WrapError classifies err into an OperationError for step. An error that
// already is one keeps its type and gains the step when it has none.
func WrapError(err error, step, message string) *OperationError {
	if err == nil {
		return nil
	}

	if opErr, ok := AsOperationError(err); ok {
		if opErr.Step == "" {
			opErr.Step = step
		}
		return opErr
	}

	var schemaErr *dataset.SchemaError
	var coercionErr *dataset.CoercionError
	var splitErr *ml.SplitError
	switch {
	case errors.As(err, &schemaErr):
		return NewSchemaError(step, schemaErr.Missing)
	case errors.As(err, &coercionErr):
		return NewCoercionError(step, coercionErr)
	case errors.As(err, &splitErr):
		return NewSplitError(step, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewCancellationError(step, err)
	case errors.Is(err, ml.ErrSingleClass), errors.Is(err, ml.ErrTooFewSamples), errors.Is(err, ml.ErrEmptyInput):
		return NewModelError(step, err)
	}

	if message == "" {
		message = err.Error()
	} else {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return NewPipelineError(step, message, err)
}
