package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrSingleClass is returned when training labels contain only one class.
var ErrSingleClass = errors.New("training data contains a single class")

// RandomForest is a bagged ensemble of CART trees for binary labels 0/1.
type RandomForest struct {
	NEstimators int
	MaxFeatures int // 0 selects floor(sqrt(p))
	Bootstrap   bool
	Seed        int64

	Trees []*DecisionTree
}

// RandomForestOption configures a RandomForest.
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithForestSeed(s int64) RandomForestOption {
	return func(rf *RandomForest) { rf.Seed = s }
}

// NewRandomForest returns a forest of 100 bootstrapped trees.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators: 100,
		Bootstrap:   true,
		Seed:        42,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains every tree concurrently. Tree seeds are drawn serially from the
// forest seed, so the fitted forest does not depend on scheduling.
func (rf *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	if rf.NEstimators <= 0 {
		return fmt.Errorf("randomforest: invalid tree count %d", rf.NEstimators)
	}
	seen := [2]bool{}
	for _, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("randomforest: label %d is not binary", label)
		}
		seen[label] = true
	}
	if !seen[0] || !seen[1] {
		return ErrSingleClass
	}

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(len(X[0]))))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	master := rand.New(rand.NewSource(rf.Seed))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*DecisionTree, rf.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range seeds {
		i := i
		g.Go(guard(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			treeRand := rand.New(rand.NewSource(seeds[i]))
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
			}
			tree := NewDecisionTree(2, maxFeatures, treeRand)
			if err := tree.Fit(X, y, sample); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rf.Trees = trees
	return nil
}

// PredictProba returns, for each row, the mean over trees of the leaf
// probability of class 1.
func (rf *RandomForest) PredictProba(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("randomforest: model not fitted")
	}
	out := make([]float64, len(X))
	for i, x := range X {
		sum := 0.0
		for _, tree := range rf.Trees {
			sum += tree.PredictProba(x)[1]
		}
		out[i] = sum / float64(len(rf.Trees))
	}
	return out, nil
}
