package dataset

import (
	"math"
	"strconv"
	"strings"

	"loanrecovery/pkg/contracts/domain"
)

// MissingValuesMessage is the user facing text for any coercion failure.
const MissingValuesMessage = "Missing values detected in numeric columns. Please ensure all feature columns contain valid numbers."

// ColumnMissing counts the unusable cells of one feature column.
type ColumnMissing struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// CoercionError reports feature cells that could not be read as numbers.
type CoercionError struct {
	Columns    []ColumnMissing `json:"columns"`
	FirstRow   int             `json:"first_row"`
	FirstCol   string          `json:"first_column"`
	FirstValue string          `json:"first_value"`
}

func (e *CoercionError) Error() string { return MissingValuesMessage }

// Total returns the number of missing cells across all columns.
func (e *CoercionError) Total() int {
	n := 0
	for _, c := range e.Columns {
		n += c.Count
	}
	return n
}

// ParseNumeric reads a cell as a finite float. Blank, non-numeric,
// hexadecimal, NaN and infinite tokens are reported as missing.
func ParseNumeric(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	unsigned := strings.TrimLeft(s, "+-")
	if len(unsigned) > 1 && unsigned[0] == '0' && (unsigned[1] == 'x' || unsigned[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CoerceFeatures converts every feature cell of the table into a
// BorrowerRecord. It fails with *SchemaError if a required column is absent
// and with *CoercionError if any feature cell is missing or malformed.
func CoerceFeatures(t *Table) ([]domain.BorrowerRecord, error) {
	if err := ValidateSchema(t); err != nil {
		return nil, err
	}

	features := domain.FeatureColumns()
	featureIdx := make([]int, len(features))
	for j, name := range features {
		featureIdx[j] = t.ColumnIndex(name)
	}
	meta := metadataIndex{
		id:       t.ColumnIndex(domain.ColBorrowerID),
		history:  t.ColumnIndex(domain.ColPaymentHistory),
		status:   t.ColumnIndex(domain.ColRecoveryStatus),
		method:   t.ColumnIndex(domain.ColCollectionMethod),
		attempts: t.ColumnIndex(domain.ColCollectionAttempts),
		legal:    t.ColumnIndex(domain.ColLegalActionTaken),
	}

	counts := make([]int, len(features))
	var cerr *CoercionError
	records := make([]domain.BorrowerRecord, len(t.Rows))

	for i, row := range t.Rows {
		rec := domain.BorrowerRecord{Row: i}
		for j, col := range featureIdx {
			v, ok := ParseNumeric(row[col])
			if !ok {
				counts[j]++
				if cerr == nil {
					cerr = &CoercionError{FirstRow: i, FirstCol: features[j], FirstValue: row[col]}
				}
				continue
			}
			rec.Features[j] = v
		}
		meta.fill(&rec, row)
		records[i] = rec
	}

	if cerr != nil {
		for j, name := range features {
			if counts[j] > 0 {
				cerr.Columns = append(cerr.Columns, ColumnMissing{Column: name, Count: counts[j]})
			}
		}
		return nil, cerr
	}
	return records, nil
}

type metadataIndex struct {
	id, history, status, method, attempts, legal int
}

func (m metadataIndex) fill(rec *domain.BorrowerRecord, row []string) {
	rec.BorrowerID = strings.TrimSpace(row[m.id])
	rec.PaymentHistory = strings.TrimSpace(row[m.history])
	rec.RecoveryStatus = strings.TrimSpace(row[m.status])
	rec.CollectionMethod = strings.TrimSpace(row[m.method])
	rec.CollectionAttempts = strings.TrimSpace(row[m.attempts])
	rec.LegalActionTaken = strings.TrimSpace(row[m.legal])
}
