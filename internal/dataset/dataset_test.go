package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loanrecovery/pkg/contracts/domain"
)

const validCSV = `Borrower_ID,Age,Monthly_Income,Loan_Amount,Loan_Tenure,Interest_Rate,Collateral_Value,Outstanding_Loan_Amount,Monthly_EMI,Num_Missed_Payments,Days_Past_Due,Payment_History,Recovery_Status,Collection_Method,Collection_Attempts,Legal_Action_Taken
1,35,5000.5,20000,24,5.5,15000,12000,800,1,10,On-time,Recovered,Email,1,No
2,52,3200,41000,48,8.25,9000,39000,1500,4,75,Late,Not Recovered,Phone,3,Yes
`

func TestMissingColumns(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		required []string
		want     []string
	}{
		{
			name:     "all present",
			header:   []string{"a", "b", "c"},
			required: []string{"a", "c"},
			want:     []string{},
		},
		{
			name:     "missing keeps required order",
			header:   []string{"b"},
			required: []string{"c", "a", "b"},
			want:     []string{"c", "a"},
		},
		{
			name:     "header whitespace and bom ignored",
			header:   []string{"\uFEFF a ", " b"},
			required: []string{"a", "b"},
			want:     []string{},
		},
		{
			name:     "case sensitive",
			header:   []string{"age"},
			required: []string{"Age"},
			want:     []string{"Age"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable("test", tt.header, nil)
			assert.Equal(t, tt.want, MissingColumns(table, tt.required))
		})
	}
}

func TestValidateSchema_ReportsDroppedColumn(t *testing.T) {
	table := GenerateSample(10, 42)
	idx := table.ColumnIndex(domain.ColDaysPastDue)
	require.GreaterOrEqual(t, idx, 0)
	header := append([]string(nil), table.Header...)
	header[idx] = "Days_Late"

	err := ValidateSchema(NewTable("test", header, table.Rows))
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{domain.ColDaysPastDue}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "Days_Past_Due")
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.5 ", 3.5, true},
		{"-7", -7, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"12abc", 0, false},
		{"0x1F", 0, false},
		{"-0x10", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"-Infinity", 0, false},
		{"1e400", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumeric(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestCoerceFeatures(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(validCSV))
	require.NoError(t, err)

	records, err := CoerceFeatures(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].BorrowerID)
	assert.Equal(t, 35.0, records[0].Features[0])
	assert.Equal(t, 5000.5, records[0].MonthlyIncome())
	assert.Equal(t, 41000.0, records[1].LoanAmount())
	assert.Equal(t, 4.0, records[1].NumMissedPayments())
	assert.Equal(t, "Not Recovered", records[1].RecoveryStatus)
	assert.Equal(t, "3", records[1].CollectionAttempts)
	assert.Equal(t, 1, records[1].Row)
}

func TestCoerceFeatures_MissingValues(t *testing.T) {
	table := GenerateSample(20, 7)
	ageIdx := table.ColumnIndex(domain.ColAge)
	emiIdx := table.ColumnIndex(domain.ColMonthlyEMI)
	table.Rows[3][ageIdx] = "abc"
	table.Rows[5][ageIdx] = ""
	table.Rows[9][emiIdx] = "NaN"

	records, err := CoerceFeatures(table)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Equal(t, MissingValuesMessage, err.Error())

	var coerceErr *CoercionError
	require.True(t, errors.As(err, &coerceErr))
	assert.Equal(t, []ColumnMissing{
		{Column: domain.ColAge, Count: 2},
		{Column: domain.ColMonthlyEMI, Count: 1},
	}, coerceErr.Columns)
	assert.Equal(t, 3, coerceErr.FirstRow)
	assert.Equal(t, domain.ColAge, coerceErr.FirstCol)
	assert.Equal(t, "abc", coerceErr.FirstValue)
	assert.Equal(t, 3, coerceErr.Total())
}

func TestReadCSV(t *testing.T) {
	t.Run("bom and blank rows", func(t *testing.T) {
		input := "\uFEFF" + validCSV + "\n,,,\n"
		table, err := ReadCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, domain.ColBorrowerID, table.Header[0])
		assert.Empty(t, MissingColumns(table, domain.RequiredColumns()))
	})

	t.Run("short rows padded", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", ""}, table.Rows[0])
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestReadXLSX(t *testing.T) {
	source, err := ReadCSV(strings.NewReader(validCSV))
	require.NoError(t, err)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &source.Header))
	for i, row := range source.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ReadFile("portfolio.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "portfolio.xlsx", table.Source)
	assert.Equal(t, source.Header, table.Header)
	assert.Equal(t, source.Rows, table.Rows)
}

func TestDetectFormat(t *testing.T) {
	format, err := DetectFormat("Loan_Recovery.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = DetectFormat("book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = DetectFormat("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestGenerateSample(t *testing.T) {
	table := GenerateSample(DefaultSampleRows, 42)
	require.Equal(t, DefaultSampleRows, table.Len())
	assert.Empty(t, MissingColumns(table, domain.RequiredColumns()))

	again := GenerateSample(DefaultSampleRows, 42)
	assert.Equal(t, table.Rows, again.Rows)

	other := GenerateSample(DefaultSampleRows, 43)
	assert.NotEqual(t, table.Rows, other.Rows)

	records, err := CoerceFeatures(table)
	require.NoError(t, err)

	ranges := map[string][2]float64{
		domain.ColAge:                   {20, 69},
		domain.ColMonthlyIncome:         {2000, 10000},
		domain.ColLoanAmount:            {5000, 50000},
		domain.ColLoanTenure:            {12, 59},
		domain.ColInterestRate:          {3, 10},
		domain.ColCollateralValue:       {3000, 40000},
		domain.ColOutstandingLoanAmount: {1000, 45000},
		domain.ColMonthlyEMI:            {200, 2000},
		domain.ColNumMissedPayments:     {0, 4},
		domain.ColDaysPastDue:           {0, 89},
	}
	for i, rec := range records {
		assert.Equal(t, i+1, mustAtoi(t, rec.BorrowerID))
		for col, bounds := range ranges {
			v, ok := rec.Feature(col)
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, bounds[0], col)
			assert.LessOrEqual(t, v, bounds[1], col)
		}
		assert.Contains(t, []string{"On-time", "Late"}, rec.PaymentHistory)
		assert.Contains(t, []string{"Recovered", "Not Recovered"}, rec.RecoveryStatus)
		assert.Contains(t, []string{"Email", "Phone", "In-Person"}, rec.CollectionMethod)
		assert.Contains(t, []string{"Yes", "No"}, rec.LegalActionTaken)
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	v, ok := ParseNumeric(s)
	require.True(t, ok)
	return int(v)
}
