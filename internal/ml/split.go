package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// SplitError reports a stratified split that cannot be made.
type SplitError struct {
	Reason string
}

func (e *SplitError) Error() string { return e.Reason }

// StratifiedSplit partitions row indices into train and test sets so that
// each class keeps its share of the test set. The test set holds
// ceil(testSize*n) rows; per-class counts are floored and the leftover rows
// go to the classes with the largest remainders.
func StratifiedSplit(labels []int, testSize float64, seed int64) (train, test []int, err error) {
	n := len(labels)
	if n == 0 {
		return nil, nil, &SplitError{Reason: "cannot split an empty dataset"}
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, &SplitError{Reason: fmt.Sprintf("test size %.3f must be in (0, 1)", testSize)}
	}

	byClass := map[int][]int{}
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	minCount := n
	for _, c := range classes {
		if len(byClass[c]) < minCount {
			minCount = len(byClass[c])
		}
	}
	if minCount < 2 {
		return nil, nil, &SplitError{Reason: fmt.Sprintf(
			"The least populated class in y has only %d member, which is too few. The minimum number of groups for any class cannot be less than 2.",
			minCount)}
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) {
		return nil, nil, &SplitError{Reason: fmt.Sprintf(
			"The test_size = %d should be greater or equal to the number of classes = %d", nTest, len(classes))}
	}
	if nTrain < len(classes) {
		return nil, nil, &SplitError{Reason: fmt.Sprintf(
			"The train_size = %d should be greater or equal to the number of classes = %d", nTrain, len(classes))}
	}

	alloc := allocate(classes, byClass, n, nTest)

	rng := rand.New(rand.NewSource(seed))
	for ci, c := range classes {
		members := byClass[c]
		perm := rng.Perm(len(members))
		for k, p := range perm {
			if k < alloc[ci] {
				test = append(test, members[p])
			} else {
				train = append(train, members[p])
			}
		}
	}
	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test, nil
}

// allocate spreads nTest rows over classes by largest remainder; ties go to
// the lower class label.
func allocate(classes []int, byClass map[int][]int, n, nTest int) []int {
	alloc := make([]int, len(classes))
	rem := make([]float64, len(classes))
	assigned := 0
	for i, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		alloc[i] = int(math.Floor(exact))
		rem[i] = exact - float64(alloc[i])
		assigned += alloc[i]
	}

	order := make([]int, len(classes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for k := 0; assigned < nTest; k++ {
		i := order[k%len(order)]
		if alloc[i] < len(byClass[classes[i]]) {
			alloc[i]++
			assigned++
		}
	}
	return alloc
}
