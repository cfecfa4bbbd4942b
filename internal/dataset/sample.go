package dataset

import (
	"math"
	"math/rand"
	"strconv"

	"loanrecovery/pkg/contracts/domain"
)

// DefaultSampleRows is the size of the demo portfolio.
const DefaultSampleRows = 100

// SampleSource labels tables produced by GenerateSample.
const SampleSource = "sample"

// GenerateSample builds a synthetic portfolio of n borrowers. The same seed
// always yields the same table. Columns are drawn one at a time in header
// order so that adding rows never reshuffles earlier columns' streams.
func GenerateSample(n int, seed int64) *Table {
	if n <= 0 {
		n = DefaultSampleRows
	}
	rng := rand.New(rand.NewSource(seed))

	header := []string{
		domain.ColBorrowerID,
		domain.ColAge,
		domain.ColMonthlyIncome,
		domain.ColLoanAmount,
		domain.ColLoanTenure,
		domain.ColInterestRate,
		domain.ColCollateralValue,
		domain.ColOutstandingLoanAmount,
		domain.ColMonthlyEMI,
		domain.ColNumMissedPayments,
		domain.ColDaysPastDue,
		domain.ColPaymentHistory,
		domain.ColRecoveryStatus,
		domain.ColCollectionMethod,
		domain.ColCollectionAttempts,
		domain.ColLegalActionTaken,
	}

	columns := [][]string{
		sequence(n),
		randInts(rng, n, 20, 70),
		randMoney(rng, n, 2000, 10000),
		randMoney(rng, n, 5000, 50000),
		randInts(rng, n, 12, 60),
		randMoney(rng, n, 3.0, 10.0),
		randMoney(rng, n, 3000, 40000),
		randMoney(rng, n, 1000, 45000),
		randMoney(rng, n, 200, 2000),
		randInts(rng, n, 0, 5),
		randInts(rng, n, 0, 90),
		randChoice(rng, n, "On-time", "Late"),
		randChoice(rng, n, "Recovered", "Not Recovered"),
		randChoice(rng, n, "Email", "Phone", "In-Person"),
		randInts(rng, n, 0, 5),
		randChoice(rng, n, "Yes", "No"),
	}

	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		rows[i] = row
	}
	return NewTable(SampleSource, header, rows)
}

func sequence(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

// randInts draws from [lo, hi).
func randInts(rng *rand.Rand, n, lo, hi int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(lo + rng.Intn(hi-lo))
	}
	return out
}

// randMoney draws from [lo, hi) rounded to cents.
func randMoney(rng *rand.Rand, n int, lo, hi float64) []string {
	out := make([]string, n)
	for i := range out {
		v := lo + rng.Float64()*(hi-lo)
		out[i] = strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	}
	return out
}

func randChoice(rng *rand.Rand, n int, choices ...string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = choices[rng.Intn(len(choices))]
	}
	return out
}
