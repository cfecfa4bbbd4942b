package ml

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	X := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
		{4, 40, 5},
	}
	s := NewStandardScaler()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 25, 5}, s.Mean, 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Std[0], 1e-12)
	assert.Equal(t, 1.0, s.Std[2], "zero variance scales by one")

	for j := 0; j < 3; j++ {
		mean, sq := 0.0, 0.0
		for i := range out {
			mean += out[i][j]
		}
		mean /= float64(len(out))
		for i := range out {
			sq += (out[i][j] - mean) * (out[i][j] - mean)
		}
		assert.InDelta(t, 0, mean, 1e-12)
		if j < 2 {
			assert.InDelta(t, 1, sq/float64(len(out)), 1e-12)
		} else {
			assert.InDelta(t, 0, sq, 1e-12)
		}
	}

	_, err = NewStandardScaler().FitTransform(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func blobs(perCluster int, seed int64) ([][]float64, []int) {
	centres := [][]float64{{0, 0}, {50, 0}, {0, 50}, {50, 50}}
	rng := rand.New(rand.NewSource(seed))
	var X [][]float64
	var truth []int
	for c, centre := range centres {
		for i := 0; i < perCluster; i++ {
			X = append(X, []float64{centre[0] + rng.Float64(), centre[1] + rng.Float64()})
			truth = append(truth, c)
		}
	}
	return X, truth
}

func TestKMeans_SeparatedBlobs(t *testing.T) {
	X, truth := blobs(25, 1)
	km := NewKMeans(4)
	require.NoError(t, km.Fit(context.Background(), X))

	require.Len(t, km.Labels, len(X))
	require.Len(t, km.Centroids, 4)

	clusterOf := map[int]int{}
	for i, label := range km.Labels {
		if prev, ok := clusterOf[truth[i]]; ok {
			assert.Equal(t, prev, label, "row %d split from its blob", i)
		} else {
			clusterOf[truth[i]] = label
		}
	}
	seen := map[int]bool{}
	for _, label := range clusterOf {
		seen[label] = true
	}
	assert.Len(t, seen, 4)
	assert.Less(t, km.Inertia, float64(len(X)))
}

func TestKMeans_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	X := make([][]float64, 60)
	for i := range X {
		X[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}

	a := NewKMeans(4, WithKMeansSeed(42))
	b := NewKMeans(4, WithKMeansSeed(42))
	require.NoError(t, a.Fit(context.Background(), X))
	require.NoError(t, b.Fit(context.Background(), X))
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Inertia, b.Inertia)

	single := NewKMeans(4, WithKMeansSeed(42), WithNInit(1))
	require.NoError(t, single.Fit(context.Background(), X))
	assert.LessOrEqual(t, a.Inertia, single.Inertia+1e-9)
}

func TestKMeans_Errors(t *testing.T) {
	err := NewKMeans(4).Fit(context.Background(), [][]float64{{1}, {2}, {3}})
	assert.ErrorIs(t, err, ErrTooFewSamples)

	err = NewKMeans(4).Fit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X, _ := blobs(5, 2)
	err = NewKMeans(4).Fit(ctx, X)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestKMeans_IdenticalRows(t *testing.T) {
	X := make([][]float64, 8)
	for i := range X {
		X[i] = []float64{1, 1}
	}
	km := NewKMeans(4)
	require.NoError(t, km.Fit(context.Background(), X))
	assert.Equal(t, 0.0, km.Inertia)
}

func separable(n int) ([][]float64, []int) {
	X := make([][]float64, 0, 2*n)
	y := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		X = append(X, []float64{float64(i % 5), float64(i % 3)})
		y = append(y, 0)
		X = append(X, []float64{100 + float64(i%5), 100 + float64(i%3)})
		y = append(y, 1)
	}
	return X, y
}

func TestDecisionTree(t *testing.T) {
	X, y := separable(10)
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	tree := NewDecisionTree(2, 0, rand.New(rand.NewSource(1)))
	require.NoError(t, tree.Fit(X, y, idx))

	assert.Equal(t, []float64{1, 0}, tree.PredictProba([]float64{2, 1}))
	assert.Equal(t, []float64{0, 1}, tree.PredictProba([]float64{103, 101}))
}

func TestRandomForest(t *testing.T) {
	X, y := separable(20)
	rf := NewRandomForest(WithNEstimators(25), WithForestSeed(42))
	require.NoError(t, rf.Fit(context.Background(), X, y))
	require.Len(t, rf.Trees, 25)

	probs, err := rf.PredictProba([][]float64{{1, 1}, {102, 102}})
	require.NoError(t, err)
	assert.Less(t, probs[0], 0.1)
	assert.Greater(t, probs[1], 0.9)

	again := NewRandomForest(WithNEstimators(25), WithForestSeed(42))
	require.NoError(t, again.Fit(context.Background(), X, y))
	probs2, err := again.PredictProba([][]float64{{1, 1}, {102, 102}, {50, 50}})
	require.NoError(t, err)
	probs3, err := rf.PredictProba([][]float64{{1, 1}, {102, 102}, {50, 50}})
	require.NoError(t, err)
	assert.Equal(t, probs3, probs2)
	for _, p := range probs3 {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestRandomForest_Errors(t *testing.T) {
	rf := NewRandomForest()
	err := rf.Fit(context.Background(), [][]float64{{1}, {2}}, []int{1, 1})
	assert.ErrorIs(t, err, ErrSingleClass)

	err = rf.Fit(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewRandomForest().PredictProba([][]float64{{1}})
	assert.Error(t, err)
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := 0; i < 30; i++ {
		labels[i*3] = 1
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	ones := 0
	for _, i := range test {
		ones += labels[i]
	}
	assert.Equal(t, 6, ones)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplit_CeilsTestSize(t *testing.T) {
	labels := make([]int, 11)
	for i := 0; i < 5; i++ {
		labels[i] = 1
	}
	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 8)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
	}{
		{"singleton class", []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"test smaller than classes", []int{0, 0, 0, 1, 1}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := StratifiedSplit(tt.labels, 0.2, 42)
			var splitErr *SplitError
			assert.True(t, errors.As(err, &splitErr))
		})
	}
}
