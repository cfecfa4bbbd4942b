// Package recovery applies the learning primitives in internal/ml to borrower
// portfolios: it segments borrowers into four named clusters, scores the
// held-out borrowers for default risk and maps each score to a recovery
// strategy.
package recovery

// Params holds the knobs of one pipeline run. Every random choice derives
// from Seed.
type Params struct {
	Seed          int64
	Clusters      int
	KMeansInit    int
	KMeansMaxIter int
	KMeansTol     float64
	TestSize      float64
	Trees         int
}

// DefaultParams mirrors the reference dashboard behaviour.
func DefaultParams() Params {
	return Params{
		Seed:          42,
		Clusters:      4,
		KMeansInit:    10,
		KMeansMaxIter: 300,
		KMeansTol:     1e-4,
		TestSize:      0.2,
		Trees:         100,
	}
}
