package recovery

import (
	"context"
	"fmt"

	"loanrecovery/internal/ml"
	"loanrecovery/pkg/contracts/domain"
)

// Labels returns the training target: 1 for borrowers in a high-risk segment.
func Labels(rows []domain.SegmentedBorrower) []int {
	y := make([]int, len(rows))
	for i, r := range rows {
		if domain.IsHighRiskSegmentName(r.SegmentName) {
			y[i] = 1
		}
	}
	return y
}

// ScoreRisk splits the segmented borrowers into train and test partitions,
// fits a random forest on the raw training features and scores the test
// partition. The result follows test partition order and has no strategy
// set yet.
//
// A split that cannot be stratified returns *ml.SplitError; a training
// partition with one class returns ml.ErrSingleClass.
func ScoreRisk(ctx context.Context, rows []domain.SegmentedBorrower, p Params) ([]domain.RiskAssessment, error) {
	y := Labels(rows)
	trainIdx, testIdx, err := ml.StratifiedSplit(y, p.TestSize, p.Seed)
	if err != nil {
		return nil, err
	}

	Xtrain := make([][]float64, len(trainIdx))
	ytrain := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		Xtrain[i] = rows[idx].Features.Slice()
		ytrain[i] = y[idx]
	}

	forest := ml.NewRandomForest(
		ml.WithNEstimators(p.Trees),
		ml.WithForestSeed(p.Seed),
	)
	if err := forest.Fit(ctx, Xtrain, ytrain); err != nil {
		return nil, fmt.Errorf("failed to train risk model: %w", err)
	}

	Xtest := make([][]float64, len(testIdx))
	for i, idx := range testIdx {
		Xtest[i] = rows[idx].Features.Slice()
	}
	scores, err := forest.PredictProba(Xtest)
	if err != nil {
		return nil, fmt.Errorf("failed to score borrowers: %w", err)
	}

	out := make([]domain.RiskAssessment, len(testIdx))
	for i, idx := range testIdx {
		r := rows[idx]
		out[i] = domain.RiskAssessment{
			Row:                r.Row,
			Features:           r.Features,
			BorrowerID:         r.BorrowerID,
			MonthlyIncome:      r.MonthlyIncome(),
			LoanAmount:         r.LoanAmount(),
			SegmentName:        r.SegmentName,
			RiskScore:          scores[i],
			PredictedHighRisk:  scores[i] > domain.HighRiskThreshold,
			RecoveryStatus:     r.RecoveryStatus,
			CollectionMethod:   r.CollectionMethod,
			CollectionAttempts: r.CollectionAttempts,
			LegalActionTaken:   r.LegalActionTaken,
		}
	}
	return out, nil
}
