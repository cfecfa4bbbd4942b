package recovery

import (
	"context"
	"fmt"

	"loanrecovery/internal/ml"
	"loanrecovery/pkg/contracts/domain"
)

// FeatureMatrix copies the feature vectors of records into row-major form.
func FeatureMatrix(records []domain.BorrowerRecord) [][]float64 {
	X := make([][]float64, len(records))
	for i, r := range records {
		X[i] = r.Features.Slice()
	}
	return X
}

// Segment standardises the features of this batch, clusters the borrowers
// with K-Means and attaches the fixed segment name to every row.
func Segment(ctx context.Context, records []domain.BorrowerRecord, p Params) ([]domain.SegmentedBorrower, error) {
	if p.Clusters != domain.NumSegments {
		return nil, fmt.Errorf("segmentation requires %d clusters, got %d", domain.NumSegments, p.Clusters)
	}

	scaled, err := ml.NewStandardScaler().FitTransform(FeatureMatrix(records))
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}

	km := ml.NewKMeans(p.Clusters,
		ml.WithNInit(p.KMeansInit),
		ml.WithMaxIter(p.KMeansMaxIter),
		ml.WithTolerance(p.KMeansTol),
		ml.WithKMeansSeed(p.Seed),
	)
	if err := km.Fit(ctx, scaled); err != nil {
		return nil, fmt.Errorf("failed to cluster borrowers: %w", err)
	}

	out := make([]domain.SegmentedBorrower, len(records))
	for i, rec := range records {
		seg, err := domain.SegmentFromCluster(km.Labels[i])
		if err != nil {
			return nil, err
		}
		flag := 0
		if seg.HighRisk() {
			flag = 1
		}
		out[i] = domain.SegmentedBorrower{
			BorrowerRecord: rec,
			Cluster:        seg,
			SegmentName:    seg.Name(),
			HighRisk:       flag,
		}
	}
	return out, nil
}

// SegmentCounts tallies borrowers per segment in cluster order. Segments
// with no members are included with a zero count.
func SegmentCounts(rows []domain.SegmentedBorrower) []domain.SegmentCount {
	counts := make([]domain.SegmentCount, domain.NumSegments)
	for i := range counts {
		seg := domain.Segment(i)
		counts[i] = domain.SegmentCount{Cluster: seg, SegmentName: seg.Name()}
	}
	for _, r := range rows {
		if int(r.Cluster) >= 0 && int(r.Cluster) < len(counts) {
			counts[r.Cluster].Count++
		}
	}
	return counts
}
