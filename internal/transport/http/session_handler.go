package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/exporter"
	"loanrecovery/internal/infrastructure"
	"loanrecovery/internal/middleware"
)

// Preview sizes of the dashboard views
const (
	DefaultDataLimit     = 50
	DefaultSegmentsLimit = 20
	DefaultRiskLimit     = 20
	MaxPreviewLimit      = 1000

	// uploadMemory is the part of a multipart upload held in memory
	uploadMemory = 8 << 20
)

// SampleRequest is the body of POST /api/sessions/{id}/sample
type SampleRequest struct {
	Rows int `json:"rows" validate:"omitempty,min=10,max=100000"`
}

type uploadRequest struct {
	FileName string `json:"file" validate:"required,upload_ext"`
}

// SessionHandler handles dataset sessions, pipeline runs and their views
type SessionHandler struct {
	service        RecoveryServiceInterface
	reports        *ReportHandler
	validator      *middleware.Validator
	query          *middleware.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewSessionHandler creates a session handler. Upload bodies are capped at
// maxUploadBytes.
func NewSessionHandler(service RecoveryServiceInterface, reports *ReportHandler, maxUploadBytes int64, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		service:        service,
		reports:        reports,
		validator:      middleware.NewValidator(logger, errorHandler),
		query:          middleware.NewQueryParamValidator(errorHandler),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("handler", "sessions")),
	}
}

// Routes returns the session routes
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.ResetSession)

		r.With(middleware.UploadLimit(h.maxUploadBytes)).Post("/upload", h.Upload)
		r.Post("/sample", h.Sample)

		r.Get("/data", h.Data)
		r.Get("/segments", h.Segments)
		r.Get("/risk", h.Risk)
		r.Get("/insights/{kind}", h.Insight)

		if h.reports != nil {
			r.Get("/report.csv", h.reports.Download(exporter.FormatCSV))
			r.Get("/report.xlsx", h.reports.Download(exporter.FormatXLSX))
		}
	})
	return r
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusCreated, h.service.CreateSession(r.Context()))
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.service.ListSessions())
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, snap)
}

// ResetSession handles DELETE /api/sessions/{id}. The session id stays valid.
func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	r, id := withSession(r)
	snap, err := h.service.ResetSession(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, snap)
}

// Upload handles POST /api/sessions/{id}/upload
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r, id := withSession(r)
	ctx := r.Context()

	if h.maxUploadBytes > 0 && r.ContentLength > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		h.errorHandler.HandleError(w, r, formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, formError(err))
		return
	}
	defer file.Close()

	if err := h.validator.ValidateStruct(uploadRequest{FileName: header.Filename}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	infrastructure.LoggerWithContext(ctx, h.logger).InfoContext(ctx, "upload received",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.String("request_id", middleware.GetReqID(ctx)))

	result, err := h.service.Upload(ctx, id, header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// Sample handles POST /api/sessions/{id}/sample
func (h *SessionHandler) Sample(w http.ResponseWriter, r *http.Request) {
	r, id := withSession(r)
	var req SampleRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Sample(r.Context(), id, req.Rows)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// Data handles GET /api/sessions/{id}/data
func (h *SessionHandler) Data(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, MaxPreviewLimit, DefaultDataLimit)
	if !ok {
		return
	}
	view, err := h.service.Data(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// Segments handles GET /api/sessions/{id}/segments
func (h *SessionHandler) Segments(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, MaxPreviewLimit, DefaultSegmentsLimit)
	if !ok {
		return
	}
	view, err := h.service.Segments(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// Risk handles GET /api/sessions/{id}/risk
func (h *SessionHandler) Risk(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, MaxPreviewLimit, DefaultRiskLimit)
	if !ok {
		return
	}
	view, err := h.service.Risk(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// Insight handles GET /api/sessions/{id}/insights/{kind}
func (h *SessionHandler) Insight(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Insight(chi.URLParam(r, "id"), chi.URLParam(r, "kind"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}

// withSession resolves {id} and tags the request context with it, so logs
// written while serving the request carry session_id.
func withSession(r *http.Request) (*http.Request, string) {
	id := chi.URLParam(r, "id")
	return r.WithContext(infrastructure.WithSessionID(r.Context(), id)), id
}

// formError classifies a multipart parsing failure
func formError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return err
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return apierrors.ErrUploadMissing
	default:
		return apierrors.InvalidRequestWithError(err)
	}
}
