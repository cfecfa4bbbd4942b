package exporter

import (
	"context"
	"io"
	"log/slog"

	"loanrecovery/internal/config"
	apperrors "loanrecovery/internal/errors"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/pkg/contracts/domain"
)

// Exporter renders the risk report in the configured formats
type Exporter struct {
	cfg    config.ExportConfig
	csv    *CSVWriter
	xlsx   *XLSXWriter
	logger *slog.Logger
}

// NewExporter creates an exporter for cfg
func NewExporter(cfg config.ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		cfg:    cfg,
		csv:    NewCSVWriter(cfg.BOMPrefix),
		xlsx:   NewXLSXWriter(),
		logger: infrastructure.WithComponent(logger, "exporter"),
	}
}

// FileName returns the download name of a report format
func (e *Exporter) FileName(format Format) string {
	if format == FormatXLSX {
		return e.cfg.XLSXFileName
	}
	return e.cfg.CSVFileName
}

// Write encodes rows as format. Failures are EXPORT AppErrors.
func (e *Exporter) Write(ctx context.Context, out io.Writer, format Format, rows []domain.RiskAssessment) error {
	var err error
	switch format {
	case FormatCSV:
		err = e.csv.WriteReport(out, rows)
	case FormatXLSX:
		err = e.xlsx.WriteReport(out, rows)
	default:
		return apperrors.NewExportError("unsupported report format "+string(format), nil)
	}
	if err != nil {
		return apperrors.NewExportError("failed to write "+string(format)+" report", err).
			WithContext("rows", len(rows))
	}

	e.logger.DebugContext(ctx, "report written",
		slog.String("format", string(format)),
		slog.Int("rows", len(rows)))
	return nil
}

// WriteFile writes the report to path, creating parent directories
func (e *Exporter) WriteFile(ctx context.Context, path string, format Format, rows []domain.RiskAssessment) error {
	err := writeFile(path, func(w io.Writer) error {
		return e.Write(ctx, w, format, rows)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "report saved",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("rows", len(rows)))
	return nil
}
