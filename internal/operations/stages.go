package operations

import (
	"context"
	"errors"
	"fmt"

	"loanrecovery/internal/dataset"
	"loanrecovery/internal/recovery"
	"loanrecovery/pkg/contracts/domain"
)

// DefaultSteps returns the recovery pipeline steps in execution order.
func DefaultSteps() []Step {
	return []Step{
		NewSchemaStage(),
		NewCoercionStage(),
		NewSegmentationStage(),
		NewClassificationStage(),
		NewStrategyStage(),
	}
}

// SchemaStage rejects uploads that lack a required column.
type SchemaStage struct {
	BaseStage
}

// NewSchemaStage creates the schema validation step
func NewSchemaStage() *SchemaStage {
	return &SchemaStage{
		BaseStage: NewBaseStage(StepIDValidateSchema, StepNameValidateSchema, nil),
	}
}

// Validate requires an input table
func (s *SchemaStage) Validate(state *RunState) error {
	if state.Table == nil {
		return fmt.Errorf("no input table")
	}
	return nil
}

// Execute checks the header against the required column list
func (s *SchemaStage) Execute(ctx context.Context, state *RunState) error {
	missing := dataset.MissingColumns(state.Table, domain.RequiredColumns())
	if len(missing) > 0 {
		return NewSchemaError(s.ID(), missing)
	}
	step := state.GetStage(s.ID())
	if step != nil {
		step.SetMetadata("columns", len(state.Table.Header))
		step.SetMetadata("rows", state.Table.Len())
	}
	return nil
}

// CoercionStage converts the feature columns into numbers.
type CoercionStage struct {
	BaseStage
}

// NewCoercionStage creates the feature coercion step
func NewCoercionStage() *CoercionStage {
	return &CoercionStage{
		BaseStage: NewBaseStage(StepIDCoerceFeatures, StepNameCoerceFeatures, []string{StepIDValidateSchema}),
	}
}

// Validate requires an input table
func (s *CoercionStage) Validate(state *RunState) error {
	if state.Table == nil {
		return fmt.Errorf("no input table")
	}
	return nil
}

// Execute parses every feature cell
func (s *CoercionStage) Execute(ctx context.Context, state *RunState) error {
	records, err := dataset.CoerceFeatures(state.Table)
	if err != nil {
		var coercionErr *dataset.CoercionError
		if errors.As(err, &coercionErr) {
			return NewCoercionError(s.ID(), coercionErr)
		}
		return err
	}
	state.Records = records
	if step := state.GetStage(s.ID()); step != nil {
		step.SetMetadata("records", len(records))
	}
	return nil
}

// SegmentationStage clusters borrowers into the four named segments.
type SegmentationStage struct {
	BaseStage
}

// NewSegmentationStage creates the segmentation step
func NewSegmentationStage() *SegmentationStage {
	return &SegmentationStage{
		BaseStage: NewBaseStage(StepIDSegmentBorrowers, StepNameSegmentBorrowers, []string{StepIDCoerceFeatures}),
	}
}

// Validate requires coerced records
func (s *SegmentationStage) Validate(state *RunState) error {
	if state.Records == nil {
		return fmt.Errorf("no coerced records")
	}
	return nil
}

// Execute scales the features and runs K-Means
func (s *SegmentationStage) Execute(ctx context.Context, state *RunState) error {
	segmented, err := recovery.Segment(ctx, state.Records, state.Params)
	if err != nil {
		if ctx.Err() != nil {
			return NewCancellationError(s.ID(), ctx.Err())
		}
		return NewModelError(s.ID(), err)
	}
	state.Segmented = segmented

	if step := state.GetStage(s.ID()); step != nil {
		counts := make(map[string]int, domain.NumSegments)
		for _, c := range recovery.SegmentCounts(segmented) {
			counts[c.SegmentName] = c.Count
		}
		step.SetMetadata("segments", counts)
	}
	return nil
}

// ClassificationStage trains the risk model and scores the test partition.
type ClassificationStage struct {
	BaseStage
}

// NewClassificationStage creates the risk classification step
func NewClassificationStage() *ClassificationStage {
	return &ClassificationStage{
		BaseStage: NewBaseStage(StepIDClassifyRisk, StepNameClassifyRisk, []string{StepIDSegmentBorrowers}),
	}
}

// Validate requires segmented borrowers
func (s *ClassificationStage) Validate(state *RunState) error {
	if state.Segmented == nil {
		return fmt.Errorf("no segmented borrowers")
	}
	return nil
}

// Execute splits, trains the forest and scores held-out borrowers
func (s *ClassificationStage) Execute(ctx context.Context, state *RunState) error {
	risk, err := recovery.ScoreRisk(ctx, state.Segmented, state.Params)
	if err != nil {
		if ctx.Err() != nil {
			return NewCancellationError(s.ID(), ctx.Err())
		}
		return WrapError(err, s.ID(), "")
	}
	state.Risk = risk

	if step := state.GetStage(s.ID()); step != nil {
		flagged := 0
		for _, r := range risk {
			if r.PredictedHighRisk {
				flagged++
			}
		}
		step.SetMetadata("test_rows", len(risk))
		step.SetMetadata("predicted_high_risk", flagged)
	}
	return nil
}

// StrategyStage attaches a recovery strategy to every scored borrower.
type StrategyStage struct {
	BaseStage
}

// NewStrategyStage creates the strategy assignment step
func NewStrategyStage() *StrategyStage {
	return &StrategyStage{
		BaseStage: NewBaseStage(StepIDAssignStrategy, StepNameAssignStrategy, []string{StepIDClassifyRisk}),
	}
}

// Validate requires scored borrowers
func (s *StrategyStage) Validate(state *RunState) error {
	if state.Risk == nil {
		return fmt.Errorf("no risk assessments")
	}
	return nil
}

// Execute maps risk scores onto strategies
func (s *StrategyStage) Execute(ctx context.Context, state *RunState) error {
	recovery.ApplyStrategies(state.Risk)

	if step := state.GetStage(s.ID()); step != nil {
		counts := make(map[string]int, 3)
		for _, r := range state.Risk {
			counts[string(r.Strategy)]++
		}
		step.SetMetadata("strategies", counts)
	}
	return nil
}
