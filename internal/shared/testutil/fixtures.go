package testutil

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"loanrecovery/internal/dataset"
)

// SampleCSV renders a generated loan portfolio as CSV bytes.
func SampleCSV(t *testing.T, rows int, seed int64) []byte {
	t.Helper()
	return TableCSV(t, dataset.GenerateSample(rows, seed))
}

// TableCSV renders a table as CSV bytes with its header first.
func TableCSV(t *testing.T, table *dataset.Table) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(table.Header))
	require.NoError(t, w.WriteAll(table.Rows))
	return buf.Bytes()
}

// DropColumns returns a copy of table without the named columns.
func DropColumns(table *dataset.Table, names ...string) *dataset.Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var keep []int
	var header []string
	for i, h := range table.Header {
		if !drop[h] {
			keep = append(keep, i)
			header = append(header, h)
		}
	}

	rows := make([][]string, len(table.Rows))
	for r, row := range table.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		rows[r] = out
	}
	return dataset.NewTable(table.Source, header, rows)
}
