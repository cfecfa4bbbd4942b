// Package insights computes the exploration views of a scored portfolio: the
// loan amount distribution, income against loan amount, payment history
// counts and missed payment statistics per recovery status.
package insights

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"loanrecovery/pkg/contracts/domain"
)

// DefaultBins is the number of loan amount histogram bins
const DefaultBins = 30

// Kind names one exploration view
type Kind string

const (
	KindLoanDistribution Kind = "loan-distribution"
	KindIncomeVsLoan     Kind = "income-vs-loan"
	KindPaymentHistory   Kind = "payment-history"
	KindMissedPayments   Kind = "missed-payments"
)

// Kinds lists every view in display order
func Kinds() []Kind {
	return []Kind{KindLoanDistribution, KindIncomeVsLoan, KindPaymentHistory, KindMissedPayments}
}

// ParseKind validates a view name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown insight %q", s)
}

// Compute builds the view of kind over records
func Compute(kind Kind, records []domain.BorrowerRecord) (interface{}, error) {
	switch kind {
	case KindLoanDistribution:
		return LoanDistribution(records, DefaultBins), nil
	case KindIncomeVsLoan:
		return IncomeVsLoan(records), nil
	case KindPaymentHistory:
		return PaymentHistory(records), nil
	case KindMissedPayments:
		return MissedPayments(records), nil
	default:
		return nil, fmt.Errorf("unknown insight %q", kind)
	}
}

// Bin is one histogram bar covering [Lower, Upper)
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Summary holds the five-number summary and mean of a sample
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// Distribution is the loan amount histogram with its summary
type Distribution struct {
	Bins    []Bin   `json:"bins"`
	Summary Summary `json:"summary"`
}

// LoanDistribution bins Loan_Amount into n equal-width bins spanning the data.
// The last bin includes the maximum.
func LoanDistribution(records []domain.BorrowerRecord, n int) Distribution {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.LoanAmount()
	}
	return Distribution{Bins: histogram(values, n), Summary: summarize(values)}
}

func histogram(values []float64, n int) []Bin {
	if len(values) == 0 || n < 1 {
		return []Bin{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(sorted)}}
	}

	dividers := floats.Span(make([]float64, n+1), lo, hi)
	// stat.Histogram treats the last divider as exclusive.
	dividers[n] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	bins[n-1].Upper = hi
	return bins
}

// summarize computes quartiles by linear interpolation of the empirical CDF
func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
	}
}

// Point is one borrower in the income against loan amount scatter
type Point struct {
	BorrowerID     string  `json:"borrower_id"`
	LoanAmount     float64 `json:"loan_amount"`
	MonthlyIncome  float64 `json:"monthly_income"`
	RecoveryStatus string  `json:"recovery_status"`
}

// IncomeVsLoan returns one point per borrower in input order
func IncomeVsLoan(records []domain.BorrowerRecord) []Point {
	points := make([]Point, len(records))
	for i, r := range records {
		points[i] = Point{
			BorrowerID:     r.BorrowerID,
			LoanAmount:     r.LoanAmount(),
			MonthlyIncome:  r.MonthlyIncome(),
			RecoveryStatus: r.RecoveryStatus,
		}
	}
	return points
}

// CategoryCount is the number of borrowers sharing a payment history and recovery status
type CategoryCount struct {
	PaymentHistory string `json:"payment_history"`
	RecoveryStatus string `json:"recovery_status"`
	Count          int    `json:"count"`
}

// PaymentHistory counts borrowers per payment history and recovery status,
// sorted by both names
func PaymentHistory(records []domain.BorrowerRecord) []CategoryCount {
	type key struct{ history, status string }
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.PaymentHistory, r.RecoveryStatus}]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CategoryCount{PaymentHistory: k.history, RecoveryStatus: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentHistory != out[j].PaymentHistory {
			return out[i].PaymentHistory < out[j].PaymentHistory
		}
		return out[i].RecoveryStatus < out[j].RecoveryStatus
	})
	return out
}

// BoxStats summarises Num_Missed_Payments for one recovery status
type BoxStats struct {
	RecoveryStatus string    `json:"recovery_status"`
	Summary        Summary   `json:"summary"`
	Outliers       []float64 `json:"outliers"`
}

// MissedPayments returns box plot statistics per recovery status, sorted by
// status. Outliers lie beyond 1.5 IQR from the quartiles.
func MissedPayments(records []domain.BorrowerRecord) []BoxStats {
	groups := make(map[string][]float64)
	for _, r := range records {
		groups[r.RecoveryStatus] = append(groups[r.RecoveryStatus], r.NumMissedPayments())
	}

	statuses := make([]string, 0, len(groups))
	for s := range groups {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	out := make([]BoxStats, len(statuses))
	for i, s := range statuses {
		summary := summarize(groups[s])
		iqr := summary.Q3 - summary.Q1
		low, high := summary.Q1-1.5*iqr, summary.Q3+1.5*iqr

		outliers := []float64{}
		for _, v := range groups[s] {
			if v < low || v > high {
				outliers = append(outliers, v)
			}
		}
		sort.Float64s(outliers)
		out[i] = BoxStats{RecoveryStatus: s, Summary: summary, Outliers: outliers}
	}
	return out
}

// SegmentPoint is one borrower in the segmentation scatter
type SegmentPoint struct {
	BorrowerID    string  `json:"borrower_id"`
	MonthlyIncome float64 `json:"monthly_income"`
	LoanAmount    float64 `json:"loan_amount"`
	SegmentName   string  `json:"segment_name"`
}

// SegmentScatter returns the first limit segmented borrowers as scatter
// points; limit <= 0 returns all of them.
func SegmentScatter(rows []domain.SegmentedBorrower, limit int) []SegmentPoint {
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	out := make([]SegmentPoint, limit)
	for i := range out {
		r := rows[i]
		out[i] = SegmentPoint{
			BorrowerID:    r.BorrowerID,
			MonthlyIncome: r.MonthlyIncome(),
			LoanAmount:    r.LoanAmount(),
			SegmentName:   r.SegmentName,
		}
	}
	return out
}

// Records strips the segment assignment
func Records(rows []domain.SegmentedBorrower) []domain.BorrowerRecord {
	out := make([]domain.BorrowerRecord, len(rows))
	for i, r := range rows {
		out[i] = r.BorrowerRecord
	}
	return out
}
