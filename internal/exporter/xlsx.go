package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"loanrecovery/pkg/contracts/domain"
)

// Sheet names of the XLSX workbook
const (
	SheetRiskReport = "Risk Report"
	SheetSegments   = "Segments"
)

// XLSXWriter builds the risk report workbook
type XLSXWriter struct{}

// NewXLSXWriter creates a new XLSX writer instance
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// WriteReport writes a workbook with the risk report and a per-segment summary
func (x *XLSXWriter) WriteReport(out io.Writer, rows []domain.RiskAssessment) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the report sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetRiskReport); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSegments); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSheet(f, SheetRiskReport, header, toCells(ReportColumns()), len(rows), func(i int) []interface{} {
		return reportCells(rows[i])
	}); err != nil {
		return err
	}

	summaries := Summarize(rows)
	if err := writeSheet(f, SheetSegments, header, toCells(SummaryColumns()), len(summaries), func(i int) []interface{} {
		return summaryRow(summaries[i])
	}); err != nil {
		return err
	}

	if err := f.SetPanes(SheetRiskReport, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, style int, header []interface{}, n int, row func(int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// reportCells keeps numbers numeric so the workbook can be sorted and charted
func reportCells(r domain.RiskAssessment) []interface{} {
	cells := make([]interface{}, 0, domain.NumFeatures+9)
	for _, v := range r.Features {
		cells = append(cells, v)
	}
	return append(cells,
		r.RiskScore,
		r.PredictedHighRiskInt(),
		r.BorrowerID,
		r.SegmentName,
		r.RecoveryStatus,
		r.CollectionMethod,
		r.CollectionAttempts,
		r.LegalActionTaken,
		r.Strategy.String(),
	)
}

func toCells(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
