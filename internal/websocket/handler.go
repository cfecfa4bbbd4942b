package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/infrastructure"
)

// Handler upgrades GET /ws requests and attaches the connection to the hub
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger
}

// NewHandler creates the upgrade handler. Origins in allowedOrigins, a "*"
// entry, same-host origins and requests without an Origin header are accepted.
func NewHandler(hub *Hub, allowedOrigins []string, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	h := &Handler{
		hub:            hub,
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("component", "websocket.handler")),
	}
	for _, o := range allowedOrigins {
		h.allowedOrigins[o] = true
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  hub.cfg.ReadBufferSize,
		WriteBufferSize: hub.cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.errorHandler.HandleError(w, r,
				apierrors.New(status, apierrors.ErrWebSocketUpgrade.ErrorCode, reason.Error()))
		},
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigins["*"] || h.allowedOrigins[origin] {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}

	h.logger.WarnContext(r.Context(), "websocket origin rejected",
		slog.String("origin", origin))
	return false
}

// ServeHTTP performs the upgrade and starts the client pumps
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the problem response.
		return
	}

	reqID := middleware.GetReqID(r.Context())
	client := NewClient(h.hub, conn, reqID, h.logger)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
