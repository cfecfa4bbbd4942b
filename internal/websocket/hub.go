package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"loanrecovery/internal/config"
	"loanrecovery/internal/infrastructure"
)

// TypeConnection is sent once to every client right after it registers.
const TypeConnection = "connection"

// broadcastBuffer bounds the number of undelivered events. Events beyond it
// are dropped rather than blocking the pipeline.
const broadcastBuffer = 256

// Message is the JSON frame pushed to every connected client
type Message struct {
	Type      string      `json:"type"`
	Step      string      `json:"step,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts pipeline events to them
type Hub struct {
	// Registered clients, owned by the Run loop
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	cfg     config.WebSocketConfig
	logger  *slog.Logger
	metrics *Metrics

	mu          sync.RWMutex
	clientCount int
	running     bool

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub. A nil meter falls back to the global meter provider.
func NewHub(cfg config.WebSocketConfig, meter metric.Meter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	metrics, err := NewMetrics(meter)
	if err != nil {
		logger.Warn("websocket metrics disabled", slog.String("error", err.Error()))
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. Later calls are no-ops.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			count := len(h.clients)
			h.setClientCount(count)

			ctx := clientContext(client)
			h.metrics.connected(ctx)
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if hello, err := encode(TypeConnection, "", "connected", map[string]string{
				"client_id": client.id,
			}); err == nil {
				client.send <- hello
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.drop(client)

			ctx := clientContext(client)
			h.logger.InfoContext(ctx, "client unregistered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case message := <-h.broadcast:
			delivered := 0
			for client := range h.clients {
				select {
				case client.send <- message:
					delivered++
				default:
					// Slow consumer; the write pump sees the closed channel and hangs up.
					h.drop(client)
					h.logger.WarnContext(clientContext(client), "client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
			h.metrics.sent(context.Background(), int64(delivered))
		}
	}
}

// drop removes a registered client and closes its send channel. Run loop only.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setClientCount(len(h.clients))
	h.metrics.disconnected(clientContext(client))
}

func (h *Hub) setClientCount(n int) {
	h.mu.Lock()
	h.clientCount = n
	h.mu.Unlock()
}

// BroadcastUpdate queues an event for every connected client. It never
// blocks: once the hub is stopped or its buffer is full the event is dropped.
func (h *Hub) BroadcastUpdate(eventType, step, status string, data interface{}) {
	payload, err := encode(eventType, step, status, data)
	if err != nil {
		h.logger.Error("failed to marshal websocket message",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- payload:
	default:
		h.metrics.dropped(context.Background())
		h.logger.Warn("websocket broadcast buffer full, dropping event",
			slog.String("type", eventType),
			slog.String("step", step))
	}
}

// Register hands a client to the hub. It returns false when the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}

// Stop disconnects every client and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if running {
		<-h.done
	}
}

func encode(eventType, step, status string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      eventType,
		Step:      step,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func clientContext(c *Client) context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}
