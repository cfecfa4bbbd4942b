package domain

import "fmt"

// NumSegments is the fixed number of borrower clusters.
const NumSegments = 4

// Segment is a K-Means cluster index with a static descriptive name.
type Segment int

const (
	SegmentModerateIncomeHighBurden Segment = 0
	SegmentHighIncomeLowRisk        Segment = 1
	SegmentModerateIncomeMediumRisk Segment = 2
	SegmentHighLoanHigherRisk       Segment = 3
)

// Segment names, keyed by cluster index. The correspondence between a cluster
// index and a risk level is assumed, not guaranteed by the clustering.
const (
	SegmentNameModerateIncomeHighBurden = "Moderate Income, High Loan Burden"
	SegmentNameHighIncomeLowRisk        = "High Income, Low Default Risk"
	SegmentNameModerateIncomeMediumRisk = "Moderate Income, Medium Risk"
	SegmentNameHighLoanHigherRisk       = "High Loan, Higher Default Risk"
)

var segmentNames = [NumSegments]string{
	SegmentNameModerateIncomeHighBurden,
	SegmentNameHighIncomeLowRisk,
	SegmentNameModerateIncomeMediumRisk,
	SegmentNameHighLoanHigherRisk,
}

// SegmentNames returns the four segment names in cluster index order.
func SegmentNames() []string {
	out := make([]string, NumSegments)
	copy(out, segmentNames[:])
	return out
}

// SegmentFromCluster validates a cluster index.
func SegmentFromCluster(cluster int) (Segment, error) {
	if cluster < 0 || cluster >= NumSegments {
		return 0, fmt.Errorf("cluster index %d out of range [0,%d)", cluster, NumSegments)
	}
	return Segment(cluster), nil
}

// Name returns the segment's display name.
func (s Segment) Name() string {
	if s < 0 || int(s) >= NumSegments {
		return ""
	}
	return segmentNames[s]
}

// HighRisk reports whether borrowers in this segment are labelled high risk
// for classifier training.
func (s Segment) HighRisk() bool {
	return IsHighRiskSegmentName(s.Name())
}

// IsHighRiskSegmentName reports whether a segment name carries the high-risk label.
func IsHighRiskSegmentName(name string) bool {
	return name == SegmentNameHighLoanHigherRisk || name == SegmentNameModerateIncomeHighBurden
}

// SegmentedBorrower is a borrower with its cluster assignment.
type SegmentedBorrower struct {
	BorrowerRecord
	Cluster     Segment `json:"borrower_segment"`
	SegmentName string  `json:"segment_name"`
	HighRisk    int     `json:"high_risk_flag"`
}

// SegmentCount is the number of borrowers assigned to one segment.
type SegmentCount struct {
	Cluster     Segment `json:"borrower_segment"`
	SegmentName string  `json:"segment_name"`
	Count       int     `json:"count"`
}
