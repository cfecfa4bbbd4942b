package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"loanrecovery/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReportColumns is the column order of the borrower risk report
func ReportColumns() []string {
	cols := domain.FeatureColumns()
	return append(cols,
		domain.ColRiskScore,
		domain.ColPredictedHighRisk,
		domain.ColBorrowerID,
		domain.ColSegmentName,
		domain.ColRecoveryStatus,
		domain.ColCollectionMethod,
		domain.ColCollectionAttempts,
		domain.ColLegalActionTaken,
		domain.ColRecoveryStrategy,
	)
}

// reportRow renders one assessment in ReportColumns order
func reportRow(r domain.RiskAssessment) []string {
	row := make([]string, 0, domain.NumFeatures+9)
	for _, v := range r.Features {
		row = append(row, formatFloat(v))
	}
	return append(row,
		formatFloat(r.RiskScore),
		formatInt(r.PredictedHighRiskInt()),
		r.BorrowerID,
		r.SegmentName,
		r.RecoveryStatus,
		r.CollectionMethod,
		r.CollectionAttempts,
		r.LegalActionTaken,
		r.Strategy.String(),
	)
}

// CSVWriter writes CSV documents
type CSVWriter struct {
	// BOMPrefix adds a UTF-8 byte order mark so Excel detects the encoding
	BOMPrefix bool
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(bom bool) *CSVWriter {
	return &CSVWriter{BOMPrefix: bom}
}

// WriteCSV writes a header line followed by records
func (w *CSVWriter) WriteCSV(out io.Writer, headers []string, records [][]string) error {
	if w.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteReport writes the risk report, one line per scored borrower
func (w *CSVWriter) WriteReport(out io.Writer, rows []domain.RiskAssessment) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = reportRow(r)
	}
	return w.WriteCSV(out, ReportColumns(), records)
}

// writeFile creates path, including missing directories, and hands it to fn
func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
