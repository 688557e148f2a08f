package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/geoproxy/internal/config"
	"github.com/vyrodovalexey/geoproxy/internal/health"
	"github.com/vyrodovalexey/geoproxy/internal/middleware"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRoutes(r gin.IRoutes) {
	r.GET("/api/search", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(`[]`))
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.DefaultConfig().Server)

	assert.Equal(t, config.DefaultServerPort, cfg.Port)
	assert.Equal(t, config.DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, config.DefaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, config.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, config.DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))
	metrics := observability.NewMetrics("srvtest")
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	s := New(DefaultConfig(),
		WithLogger(logger),
		WithMetrics(metrics),
		WithTracerProvider(tp),
		WithHealth(health.NewHandler("test")),
		WithRoutes(testRoutes),
	)

	tests := []struct {
		name     string
		method   string
		path     string
		origin   string
		wantCode int
		wantBody string
	}{
		{name: "route", method: http.MethodGet, path: "/api/search", wantCode: http.StatusOK, wantBody: `[]`},
		{name: "live probe", method: http.MethodGet, path: health.RouteLive, wantCode: http.StatusOK},
		{name: "ready probe", method: http.MethodGet, path: health.RouteReady, wantCode: http.StatusOK},
		{name: "panic", method: http.MethodGet, path: "/panic", wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"internal server error"}`},
		{name: "preflight", method: http.MethodOptions, path: "/tiles/esri/1/2/3", origin: "https://a.example",
			wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, tt.wantCode, rec.Code, tt.name)
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader), tt.name)
		assert.Equal(t, middleware.XContentTypeOptions, rec.Header().Get("X-Content-Type-Options"), tt.name)
		if tt.wantBody != "" {
			assert.JSONEq(t, tt.wantBody, rec.Body.String(), tt.name)
		}
	}

	// probes are neither logged nor traced
	accessLogs := logs.FilterMessage("request completed").All()
	require.Len(t, accessLogs, 3)
	for _, entry := range accessLogs {
		assert.NotContains(t, []string{health.RouteLive, health.RouteReady}, entry.ContextMap()["path"])
	}
	assert.Len(t, recorder.Ended(), 3)

	panicLogs := logs.FilterMessage("panic recovered").All()
	require.Len(t, panicLogs, 1)
	assert.NotEmpty(t, panicLogs[0].ContextMap()["request_id"])

	expected := `
# HELP srvtest_requests_total Total number of HTTP requests
# TYPE srvtest_requests_total counter
srvtest_requests_total{method="GET",route="/api/search",status="200"} 1
srvtest_requests_total{method="GET",route="/panic",status="500"} 1
srvtest_requests_total{method="GET",route="/live",status="200"} 1
srvtest_requests_total{method="GET",route="/ready",status="200"} 1
srvtest_requests_total{method="OPTIONS",route="unmatched",status="204"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "srvtest_requests_total"))
}

func TestServer_ServeAndStop(t *testing.T) {
	t.Parallel()

	probes := health.NewHandler("test")
	s := New(DefaultConfig(), WithHealth(probes), WithRoutes(testRoutes))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	require.Eventually(t, s.IsRunning, time.Second, 10*time.Millisecond)
	assert.Equal(t, ln.Addr().String(), s.ListenAddr())

	resp, err := http.Get("http://" + s.ListenAddr() + "/api/search")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.False(t, s.IsRunning())
	assert.True(t, probes.IsDraining())
}

func TestServer_ServeTwice(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	require.Eventually(t, s.IsRunning, time.Second, 10*time.Millisecond)

	second, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Serve(second), ErrAlreadyRunning)

	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_StopWhenNotRunning(t *testing.T) {
	t.Parallel()

	s := New(nil)

	assert.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, s.ListenAddr())
}

func TestServer_StartInvalidAddress(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = -1

	err := New(cfg).Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
