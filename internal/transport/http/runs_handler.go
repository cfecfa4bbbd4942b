package http

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/middleware"
	"loanrecovery/internal/operations"
)

const runsTracerName = "loanrecovery.http.runs"

// RunSource exposes the run snapshots kept by the status broadcaster
type RunSource interface {
	GetSnapshot(operationID string) (*operations.OperationSnapshot, bool)
	GetAllSnapshots() []*operations.OperationSnapshot
}

// StepInfo describes one pipeline step
type StepInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// RunsHandler serves the progress snapshots of pipeline runs
type RunsHandler struct {
	runs         RunSource
	registry     *operations.Registry
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewRunsHandler creates a runs handler
func NewRunsHandler(runs RunSource, registry *operations.Registry, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		runs:         runs,
		registry:     registry,
		query:        middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns the run routes
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.ListRuns)
	r.Get("/steps", h.ListSteps)
	r.Get("/{id}", h.GetRun)
	return r
}

// ListRuns handles GET /api/runs, newest first. Optional filters:
// ?session_id= and ?status=.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(runsTracerName).Start(r.Context(), "runs_handler.list",
		trace.WithAttributes(attribute.String("request_id", middleware.GetReqID(r.Context()))))
	defer span.End()

	status, ok := h.query.ValidateEnum(w, r, "status", []string{
		string(operations.RunStatusPending),
		string(operations.RunStatusRunning),
		string(operations.RunStatusCompleted),
		string(operations.RunStatusFailed),
		string(operations.RunStatusCancelled),
	}, "")
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")

	all := h.runs.GetAllSnapshots()
	runs := make([]*operations.OperationSnapshot, 0, len(all))
	for _, s := range all {
		if status != "" && s.Status != status {
			continue
		}
		if sessionID != "" && s.SessionID != sessionID {
			continue
		}
		runs = append(runs, s)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	span.SetAttributes(attribute.Int("runs.count", len(runs)))
	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", status),
		slog.String("session_filter", sessionID),
		slog.Int("count", len(runs)))

	respond(w, r, http.StatusOK, runs)
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, span := otel.Tracer(runsTracerName).Start(r.Context(), "runs_handler.get",
		trace.WithAttributes(attribute.String("operation.id", id)))
	defer span.End()

	snapshot, ok := h.runs.GetSnapshot(id)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("run "+id))
		return
	}
	span.SetAttributes(attribute.String("operation.status", snapshot.Status))
	respond(w, r, http.StatusOK, snapshot)
}

// ListSteps handles GET /api/runs/steps
func (h *RunsHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	steps := h.registry.List()
	out := make([]StepInfo, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepInfo{ID: s.ID(), Name: s.Name(), Dependencies: s.GetDependencies()})
	}
	respond(w, r, http.StatusOK, out)
}
