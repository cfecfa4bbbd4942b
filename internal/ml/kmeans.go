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

// ErrTooFewSamples is returned when there are fewer rows than clusters.
var ErrTooFewSamples = errors.New("number of data points is less than K")

// KMeans partitions rows into K clusters. Fit runs NInit independent
// k-means++ seeded Lloyd runs and keeps the one with the lowest inertia.
type KMeans struct {
	K       int
	NInit   int
	MaxIter int
	Tol     float64
	Seed    int64

	Centroids [][]float64
	Labels    []int
	Inertia   float64
	NIter     int
}

// KMeansOption configures a KMeans model.
type KMeansOption func(*KMeans)

func WithNInit(n int) KMeansOption        { return func(m *KMeans) { m.NInit = n } }
func WithMaxIter(n int) KMeansOption      { return func(m *KMeans) { m.MaxIter = n } }
func WithTolerance(t float64) KMeansOption { return func(m *KMeans) { m.Tol = t } }
func WithKMeansSeed(s int64) KMeansOption { return func(m *KMeans) { m.Seed = s } }

// NewKMeans creates a model with k clusters and sklearn-like defaults.
func NewKMeans(k int, opts ...KMeansOption) *KMeans {
	m := &KMeans{
		K:       k,
		NInit:   10,
		MaxIter: 300,
		Tol:     1e-4,
		Seed:    42,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type kmeansRun struct {
	centroids [][]float64
	labels    []int
	inertia   float64
	iters     int
}

// Fit clusters X. Runs execute concurrently; each has its own seed drawn
// up front, and ties on inertia resolve to the earliest run.
func (m *KMeans) Fit(ctx context.Context, X [][]float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if m.K <= 0 {
		return fmt.Errorf("invalid cluster count %d", m.K)
	}
	if len(X) < m.K {
		return fmt.Errorf("%w: %d rows for %d clusters", ErrTooFewSamples, len(X), m.K)
	}
	nInit := m.NInit
	if nInit <= 0 {
		nInit = 1
	}

	master := rand.New(rand.NewSource(m.Seed))
	seeds := make([]int64, nInit)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	tol := m.Tol * meanVariance(X)
	runs := make([]kmeansRun, nInit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range seeds {
		i := i
		g.Go(guard(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs[i] = m.lloyd(X, rand.New(rand.NewSource(seeds[i])), tol)
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	best := 0
	for i := 1; i < len(runs); i++ {
		if runs[i].inertia < runs[best].inertia {
			best = i
		}
	}
	m.Centroids = runs[best].centroids
	m.Labels = runs[best].labels
	m.Inertia = runs[best].inertia
	m.NIter = runs[best].iters
	return nil
}

func (m *KMeans) lloyd(X [][]float64, rng *rand.Rand, tol float64) kmeansRun {
	n, p := len(X), len(X[0])
	centroids := initCenters(X, m.K, rng)
	labels := make([]int, n)

	iters := 0
	for it := 0; it < m.MaxIter; it++ {
		iters = it + 1
		for i, x := range X {
			labels[i], _ = nearest(x, centroids)
		}

		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, x := range X {
			k := labels[i]
			counts[k]++
			for j, v := range x {
				sums[k][j] += v
			}
		}

		shift := 0.0
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				c := sums[k][j] / float64(counts[k])
				d := c - centroids[k][j]
				shift += d * d
				centroids[k][j] = c
			}
		}
		if shift <= tol {
			break
		}
	}

	inertia := 0.0
	for i, x := range X {
		var d2 float64
		labels[i], d2 = nearest(x, centroids)
		inertia += d2
	}
	return kmeansRun{centroids: centroids, labels: labels, inertia: inertia, iters: iters}
}

// initCenters picks k starting centroids with k-means++ seeding.
func initCenters(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	distSq := make([]float64, n)
	for i, x := range X {
		distSq[i] = euclidSquared(x, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range distSq {
			total += d
		}

		pick := n - 1
		if total == 0 {
			pick = rng.Intn(n)
		} else {
			r := rng.Float64() * total
			cumulative := 0.0
			for i, d := range distSq {
				cumulative += d
				if cumulative > r {
					pick = i
					break
				}
			}
		}

		c := append([]float64(nil), X[pick]...)
		centroids = append(centroids, c)
		for i, x := range X {
			if d := euclidSquared(x, c); d < distSq[i] {
				distSq[i] = d
			}
		}
	}
	return centroids
}

func nearest(x []float64, centroids [][]float64) (int, float64) {
	best, bestD := 0, math.MaxFloat64
	for k, c := range centroids {
		if d := euclidSquared(x, c); d < bestD {
			best, bestD = k, d
		}
	}
	return best, bestD
}

func euclidSquared(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// meanVariance is the average per-column population variance of X.
func meanVariance(X [][]float64) float64 {
	n, p := len(X), len(X[0])
	total := 0.0
	for j := 0; j < p; j++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += X[i][j]
		}
		mean /= float64(n)
		v := 0.0
		for i := 0; i < n; i++ {
			d := X[i][j] - mean
			v += d * d
		}
		total += v / float64(n)
	}
	return total / float64(p)
}
