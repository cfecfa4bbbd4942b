package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrecovery/internal/dataset"
	"loanrecovery/internal/ml"
)

func noopStep(id string, deps ...string) Step {
	return &funcStep{
		BaseStage: NewBaseStage(id, id, deps),
		fn:        func(ctx context.Context, state *RunState) error { return nil },
	}
}

func ids(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID()
	}
	return out
}

func TestDefaultRegistry_Order(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, 5, r.Count())
	assert.Equal(t, StepIDs(), r.ListIDs())

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, StepIDs(), ids(ordered))

	deps := r.GetDependents(StepIDSegmentBorrowers)
	require.Len(t, deps, 1)
	assert.Equal(t, StepIDClassifyRisk, deps[0].ID())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopStep("a")))
	assert.Error(t, r.Register(noopStep("a")))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(noopStep("")))
	assert.True(t, r.Has("a"))

	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_DependencyOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopStep("c", "b")))
	require.NoError(t, r.Register(noopStep("b", "a")))
	require.NoError(t, r.Register(noopStep("a")))
	require.NoError(t, r.Register(noopStep("d", "a")))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids(ordered))
}

func TestRegistry_DependencyErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopStep("a", "ghost")))
	_, err := r.GetDependencyOrder()
	assert.Error(t, err)

	r = NewRegistry()
	require.NoError(t, r.Register(noopStep("a", "b")))
	require.NoError(t, r.Register(noopStep("b", "a")))
	_, err = r.GetDependencyOrder()
	assert.EqualError(t, err, "dependency cycle detected")
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"schema", &dataset.SchemaError{Missing: []string{"Age"}}, ErrorTypeSchema},
		{"coercion", &dataset.CoercionError{}, ErrorTypeCoercion},
		{"split", &ml.SplitError{Reason: "too few"}, ErrorTypeSplit},
		{"single class", fmt.Errorf("failed to train risk model: %w", ml.ErrSingleClass), ErrorTypeModel},
		{"too few samples", ml.ErrTooFewSamples, ErrorTypeModel},
		{"cancelled", context.Canceled, ErrorTypePipeline},
		{"deadline", context.DeadlineExceeded, ErrorTypePipeline},
		{"worker panic", fmt.Errorf("%w: boom", ml.ErrWorkerPanic), ErrorTypePipeline},
		{"other", errors.New("disk on fire"), ErrorTypePipeline},
		{"typed", NewModelError("x", errors.New("bad")), ErrorTypeModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapError(tt.err, StepIDClassifyRisk, "")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.NotEmpty(t, got.Step)
			assert.Equal(t, tt.want, GetErrorType(got))
		})
	}

	assert.Nil(t, WrapError(nil, "x", ""))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestOperationError_Format(t *testing.T) {
	err := NewSchemaError(StepIDValidateSchema, []string{"Age", "Loan_Amount"})
	assert.Equal(t,
		"[schema] validate_schema: The uploaded file is missing the following required columns: Age, Loan_Amount",
		err.Error())

	var schemaErr *dataset.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"Age", "Loan_Amount"}, schemaErr.Missing)

	pipe := NewPipelineError("", "boom", nil)
	assert.Equal(t, "[pipeline] Preprocessing error: boom", pipe.Error())
}

func TestStatusBroadcaster_StopDropsUpdates(t *testing.T) {
	hub := &recordingHub{}
	sb := NewStatusBroadcaster(hub, nil)
	sb.CreateOperation("run-1", "", []Step{noopStep("a"), noopStep("b")})
	sb.CompleteStep("run-1", "a", "done", nil)

	snap, ok := sb.GetSnapshot("run-1")
	require.True(t, ok)
	assert.Equal(t, 50, snap.Progress)
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, string(StepStatusCompleted), snap.Steps[0].Status)

	sb.Stop()
	sb.Stop()
	sb.StartOperation("run-1")
	assert.Equal(t, 2, hub.count(EventTypeOperationSnapshot))
}
