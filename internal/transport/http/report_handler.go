package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/exporter"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/internal/middleware"
	"loanrecovery/pkg/contracts/domain"
)

// ReportSource returns the scored borrowers of a session
type ReportSource interface {
	ReportRows(id string) ([]domain.RiskAssessment, error)
}

// ReportHandler serves the downloadable risk report
type ReportHandler struct {
	source       ReportSource
	exporter     *exporter.Exporter
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewReportHandler creates a report handler
func NewReportHandler(source ReportSource, exp *exporter.Exporter, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		source:       source,
		exporter:     exp,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "reports")),
	}
}

// Download returns the handler of GET /api/sessions/{id}/report.<format>.
// The report is rendered in memory so failures still produce a problem
// response instead of a truncated file.
func (h *ReportHandler) Download(format exporter.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := withSession(r)
		ctx := r.Context()
		logger := infrastructure.LoggerWithContext(ctx, h.logger)

		rows, err := h.source.ReportRows(id)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		var buf bytes.Buffer
		if err := h.exporter.Write(ctx, &buf, format, rows); err != nil {
			infrastructure.WithError(logger, err).ErrorContext(ctx, "report generation failed",
				slog.String("format", string(format)),
				slog.String("request_id", middleware.GetReqID(ctx)))
			h.errorHandler.HandleError(w, r, apierrors.ExportError(string(format), err))
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exporter.FileName(format)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			infrastructure.WithError(logger, err).WarnContext(ctx, "report download interrupted")
			return
		}

		middleware.RecordReportExport(ctx, string(format), len(rows))
		logger.InfoContext(ctx, "report downloaded",
			slog.String("format", string(format)),
			slog.Int("rows", len(rows)))
	}
}
