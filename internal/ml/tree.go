package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// DecisionTree is a binary CART classifier using gini impurity. Labels are
// class indices in [0, NClasses).
type DecisionTree struct {
	MaxFeatures     int
	MinSamplesSplit int
	MinSamplesLeaf  int
	NClasses        int

	root *treeNode
	rng  *rand.Rand
}

type treeNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	probas    []float64
}

type candidate struct {
	value float64
	row   int
}

// NewDecisionTree creates a tree that samples maxFeatures features per split
// (0 means all) using rng.
func NewDecisionTree(nClasses, maxFeatures int, rng *rand.Rand) *DecisionTree {
	return &DecisionTree{
		MaxFeatures:     maxFeatures,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		NClasses:        nClasses,
		rng:             rng,
	}
}

// Fit grows the tree on the rows of X named by idx. idx may repeat rows,
// which is how bootstrap samples are expressed.
func (t *DecisionTree) Fit(X [][]float64, y []int, idx []int) error {
	if len(idx) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return errors.New("dtree: X and y length mismatch")
	}
	if t.NClasses <= 0 {
		return errors.New("dtree: no classes")
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(0))
	}
	rows := append([]int(nil), idx...)
	t.root = t.build(X, y, rows)
	return nil
}

// PredictProba returns the class distribution of the leaf x falls into.
func (t *DecisionTree) PredictProba(x []float64) []float64 {
	node := t.root
	if node == nil {
		p := make([]float64, t.NClasses)
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.probas
}

func (t *DecisionTree) build(X [][]float64, y []int, rows []int) *treeNode {
	counts := t.countClasses(y, rows)
	if isPure(counts) || len(rows) < t.MinSamplesSplit {
		return &treeNode{leaf: true, probas: countsToProbas(counts)}
	}

	parent := gini(counts, len(rows))
	best := splitResult{feature: -1}
	for _, f := range t.candidateFeatures(len(X[0])) {
		res := t.bestSplit(X, y, rows, f, parent)
		if res.gain > best.gain {
			best = res
		}
	}
	if best.feature < 0 {
		return &treeNode{leaf: true, probas: countsToProbas(counts)}
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if X[r][best.feature] <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &treeNode{
		feature:   best.feature,
		threshold: best.threshold,
		left:      t.build(X, y, left),
		right:     t.build(X, y, right),
	}
}

type splitResult struct {
	gain      float64
	feature   int
	threshold float64
}

// bestSplit scans midpoints between consecutive distinct values of feature f.
func (t *DecisionTree) bestSplit(X [][]float64, y []int, rows []int, f int, parent float64) splitResult {
	res := splitResult{feature: -1}
	vals := make([]candidate, len(rows))
	for i, r := range rows {
		vals[i] = candidate{value: X[r][f], row: r}
	}
	sort.SliceStable(vals, func(a, b int) bool { return vals[a].value < vals[b].value })

	n := len(vals)
	left := make([]int, t.NClasses)
	right := t.countClasses(y, rows)
	for s := 1; s < n; s++ {
		c := y[vals[s-1].row]
		left[c]++
		right[c]--
		if vals[s].value == vals[s-1].value {
			continue
		}
		if s < t.MinSamplesLeaf || n-s < t.MinSamplesLeaf {
			continue
		}
		weighted := (float64(s)*gini(left, s) + float64(n-s)*gini(right, n-s)) / float64(n)
		if gain := parent - weighted; gain > res.gain {
			thr := (vals[s-1].value + vals[s].value) / 2
			if thr >= vals[s].value {
				thr = vals[s-1].value
			}
			res = splitResult{gain: gain, feature: f, threshold: thr}
		}
	}
	return res
}

// candidateFeatures draws MaxFeatures distinct feature indices.
func (t *DecisionTree) candidateFeatures(p int) []int {
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if t.MaxFeatures <= 0 || t.MaxFeatures >= p {
		return feats
	}
	for i := 0; i < t.MaxFeatures; i++ {
		j := i + t.rng.Intn(p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:t.MaxFeatures]
}

func (t *DecisionTree) countClasses(y []int, rows []int) []int {
	counts := make([]int, t.NClasses)
	for _, r := range rows {
		counts[y[r]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		res -= p * p
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = float64(c) / float64(n)
	}
	return p
}
