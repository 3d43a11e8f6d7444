package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstack/hwhealth-exporter/pkg/config"
)

func testServer(t *testing.T, metricsHandler http.Handler) *Server {
	t.Helper()
	if metricsHandler == nil {
		metricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics\n"))
		})
	}
	cfg := NewConfig(config.New(), "hwhealthd", "test")
	return New(cfg, metricsHandler)
}

func TestNewConfig(t *testing.T) {
	c := config.New()
	c.Address = "127.0.0.1"
	c.Port = 9999

	sc := NewConfig(c, "hwhealthd", "1.2.3")
	assert.Equal(t, "127.0.0.1", sc.Address)
	assert.Equal(t, 9999, sc.Port)
	assert.Equal(t, "hwhealthd", sc.Name)
	assert.Equal(t, "1.2.3", sc.Version)
	assert.Positive(t, sc.ShutdownTimeout)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandleHealthMethodNotAllowed(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleReady(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before Run")

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleDefault(t *testing.T) {
	s := testServer(t, nil)
	s.SetReady(true)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name   string   `json:"name"`
		Ready  bool     `json:"ready"`
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hwhealthd", resp.Name)
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Routes, "GET /metrics")
}

func TestHandleDefaultUnknownPath(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMetrics(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleMetricsMethodNotAllowed(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeMethodNotAllowed, resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestRequestIDPropagation(t *testing.T) {
	s := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Request-Id", "a742a623-5c9a-4d0f-9e53-0d2f7f1c2d25")

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "a742a623-5c9a-4d0f-9e53-0d2f7f1c2d25", rec.Header().Get("X-Request-Id"))
}

func TestRequestIDInvalidReplaced(t *testing.T) {
	s := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	got := rec.Header().Get("X-Request-Id")
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "not-a-uuid", got)
}

func TestRateLimit(t *testing.T) {
	cfg := NewConfig(config.New(), "hwhealthd", "test")
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	s := New(cfg, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRateLimitExceeded, resp.Code)
	assert.True(t, resp.Retryable)
}

func TestRateLimitSkipsSystemEndpoints(t *testing.T) {
	cfg := NewConfig(config.New(), "hwhealthd", "test")
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	s := New(cfg, http.NotFoundHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	s := testServer(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("scrape exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInternalError, resp.Code)
}

func TestResponseWriterStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTeapot, rw.Status(), "first write wins")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
