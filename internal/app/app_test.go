package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanrecovery/internal/config"
	"loanrecovery/internal/shared/testutil"
	ws "loanrecovery/internal/websocket"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	if mutate != nil {
		mutate(cfg)
	}

	app, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.Services.WebSocket.Stop()
		app.Services.Manager.Close()
	})
	return app
}

func serve(app *Application, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Status string                 `json:"status"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.Equal(t, "success", body.Status)
	return body.Data
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestNew_WiresServices(t *testing.T) {
	app := newTestApp(t, nil)

	require.NotNil(t, app.Router)
	require.NotNil(t, app.Server)
	assert.Equal(t, "127.0.0.1:0", app.Server.Addr)
	assert.Equal(t, app.Config.Server.MaxHeaderBytes, app.Server.MaxHeaderBytes)

	s := app.Services
	require.NotNil(t, s)
	assert.NotNil(t, s.Sessions)
	assert.NotNil(t, s.Manager)
	assert.NotNil(t, s.Recovery)
	assert.NotNil(t, s.Health)
	assert.NotNil(t, s.Exporter)
	assert.NotNil(t, s.WebSocket)
	assert.Nil(t, s.Publisher, "kafka is disabled by default")
}

func TestNew_KafkaPublisher(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = []string{"127.0.0.1:9092"}
	})
	require.NotNil(t, app.Services.Publisher)
	assert.NoError(t, app.Services.Publisher.Close())
}

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(app, http.MethodGet, "/api/health/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "trailing slash is stripped")

	rec = serve(app, http.MethodGet, "/api/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(app, http.MethodGet, "/api/version", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api_version"`)
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_CORS(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodOptions, "/api/sessions", nil, map[string]string{
		"Origin":                        "http://localhost:8080",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	rec = serve(app, http.MethodOptions, "/api/sessions", nil, map[string]string{
		"Origin": "http://evil.example",
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSDevelopmentOrigins(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Telemetry.Environment = "development"
	})
	assert.Contains(t, app.getCORSConfig().AllowedOrigins, "http://localhost:3000")

	app = newTestApp(t, func(cfg *config.Config) {
		cfg.Telemetry.Environment = "production"
	})
	assert.NotContains(t, app.getCORSConfig().AllowedOrigins, "http://localhost:3000")
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)

	rec = serve(app, http.MethodPut, "/api/version", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	app := newTestApp(t, nil)

	// Record at least one request first.
	serve(app, http.MethodGet, "/api/health", nil, nil)

	rec := serve(app, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_MetricsDisabled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Telemetry.MetricExporter = "none"
	})
	rec := serve(app, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SessionPipeline(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodPost, "/api/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decodeData(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	rec = serve(app, http.MethodPost, "/api/sessions/"+id+"/sample",
		strings.NewReader(`{"rows":100}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(app, http.MethodGet, "/api/sessions/"+id+"/risk?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 100, decodeData(t, rec)["total"])

	rec = serve(app, http.MethodGet, "/api/sessions/"+id+"/report.csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), config.DefaultCSVFileName)

	rec = serve(app, http.MethodGet, "/api/sessions/"+id+"/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, decodeData(t, rec)["id"])

	rec = serve(app, http.MethodGet, "/api/runs?session_id="+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestWebSocket_ReceivesRunUpdates(t *testing.T) {
	app := newTestApp(t, nil)
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return app.Services.WebSocket.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	httpResp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&created))
	httpResp.Body.Close()

	httpResp, err = http.Post(srv.URL+"/api/sessions/"+created.Data.ID+"/sample", "application/json",
		strings.NewReader(`{"rows":100}`))
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.NotEmpty(t, msg.Type)
	assert.NotEmpty(t, msg.Timestamp)
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	addr := app.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	resp, err := http.Get("http://" + addr + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))
	assert.NoError(t, ctx.Err(), "a clean shutdown does not cancel the run context")

	_, err = http.Get("http://" + addr + "/api/health/live")
	assert.Error(t, err)
}

func TestApplication_StartFailsOnBusyPort(t *testing.T) {
	first := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, first.Start(ctx, cancel))
	defer first.Stop(context.Background())

	second := newTestApp(t, nil)
	second.Server.Addr = first.Addr()
	assert.Error(t, second.Start(ctx, cancel))
}
