package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"loanrecovery/internal/config"
	"loanrecovery/internal/shared/testutil"
)

func testConfig() config.WebSocketConfig {
	cfg := config.Default().WebSocket
	cfg.PingPeriod = time.Second
	cfg.PongWait = 2 * time.Second
	return cfg
}

func startServer(t *testing.T, hub *Hub, origins ...string) *httptest.Server {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	srv := httptest.NewServer(NewHandler(hub, origins, nil, logger))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	conn := dial(t, startServer(t, hub))

	hello := readMessage(t, conn)
	assert.Equal(t, TypeConnection, hello.Type)
	assert.Equal(t, "connected", hello.Status)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastUpdate("operation:snapshot", "op-1", "update", map[string]int{"progress": 40})

	msg := readMessage(t, conn)
	assert.Equal(t, "operation:snapshot", msg.Type)
	assert.Equal(t, "op-1", msg.Step)
	assert.Equal(t, "update", msg.Status)
	assert.Equal(t, map[string]interface{}{"progress": float64(40)}, msg.Data)
	_, err := time.Parse(time.RFC3339, msg.Timestamp)
	assert.NoError(t, err)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	conn := dial(t, startServer(t, hub))
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	hub.Start()

	conn := dial(t, startServer(t, hub))
	readMessage(t, conn)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)

	// Stop is idempotent and broadcasting afterwards is a no-op.
	hub.Stop()
	hub.BroadcastUpdate("session:updated", "s-1", "ready", nil)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub(testConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Stop()

	srv := startServer(t, hub)
	conn := dial(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	t.Cleanup(hub.Stop)

	// Not started: nothing drains the buffer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastUpdate("operation:snapshot", "op", "update", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastUpdate blocked")
	}
	assert.True(t, handler.ContainsMessage("websocket broadcast buffer full, dropping event"))
}

func TestHandler_Origins(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)
	srv := startServer(t, hub, "http://dashboard.test")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "http://dashboard.test", true},
		{"same host", srv.URL, true},
		{"foreign origin", "http://evil.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{tt.origin}})
			if tt.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}

			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)

			var problem map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
			assert.Equal(t, "/errors/websocket/upgrade-failed", problem["type"])
			assert.Equal(t, "WEBSOCKET_UPGRADE_FAILED", problem["error_code"])
		})
	}
}

func TestHandler_PlainHTTPRequest(t *testing.T) {
	hub := NewHub(testConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewHandler(hub, []string{"*"}, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "upgrade-failed")
}

func TestMetrics_Connections(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(testConfig(), provider.Meter("test"), logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	conn := dial(t, startServer(t, hub))
	readMessage(t, conn)
	hub.BroadcastUpdate("session:updated", "s-1", "ready", nil)
	readMessage(t, conn)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["websocket_connections_total"])
	assert.Equal(t, int64(1), sums["websocket_connections_active"])
	assert.Equal(t, int64(1), sums["websocket_messages_sent_total"])
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.connected(context.Background())
		m.disconnected(context.Background())
		m.sent(context.Background(), 3)
		m.dropped(context.Background())
	})
}
