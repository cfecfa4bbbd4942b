package dataset

import (
	"strings"
)

const utf8BOM = "\uFEFF"

// Table is a raw uploaded portfolio: a header and string cells, row major.
type Table struct {
	Source string     `json:"source"`
	Header []string   `json:"columns"`
	Rows   [][]string `json:"rows"`

	index map[string]int
}

// NewTable builds a table, normalising header names and padding short rows.
func NewTable(source string, header []string, rows [][]string) *Table {
	t := &Table{
		Source: source,
		Header: make([]string, len(header)),
		Rows:   make([][]string, 0, len(rows)),
		index:  make(map[string]int, len(header)),
	}
	for i, name := range header {
		name = normalizeHeader(name, i == 0)
		t.Header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		cells := make([]string, len(header))
		copy(cells, row)
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	if t.index == nil {
		for i, h := range t.Header {
			if h == name {
				return i
			}
		}
		return -1
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the header carries name.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the raw cell at row/column name, or "" if either is unknown.
func (t *Table) Cell(row int, name string) string {
	col := t.ColumnIndex(name)
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][col]
}

// Head returns a copy of the table limited to the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]string(nil), t.Rows[i]...)
	}
	return NewTable(t.Source, t.Header, rows)
}

func normalizeHeader(name string, first bool) string {
	if first {
		name = strings.TrimPrefix(name, utf8BOM)
	}
	return strings.TrimSpace(name)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
