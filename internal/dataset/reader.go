package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Supported upload formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("file contains no header row")

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")

// DetectFormat maps a file name to a supported format.
func DetectFormat(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ReadFile reads an upload, choosing the parser from the file name.
func ReadFile(filename string, r io.Reader) (*Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	var t *Table
	switch format {
	case FormatXLSX:
		t, err = ReadXLSX(r)
	default:
		t, err = ReadCSV(r)
	}
	if err != nil {
		return nil, err
	}
	t.Source = filepath.Base(filename)
	return t, nil
}

// ReadCSV parses a comma separated table with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return NewTable(FormatCSV, header, rows), nil
}

// ReadXLSX parses the first worksheet of a workbook; row 1 is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 || isBlankRow(all[0]) {
		return nil, ErrEmptyFile
	}
	return NewTable(FormatXLSX, all[0], all[1:]), nil
}
