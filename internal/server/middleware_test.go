package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/theater/internal/logger"
)

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(nil)

	rr := do(t, s, "GET", "/live", "")
	generated := rr.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)

	req := httptest.NewRequest("GET", "/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	s := newTestServer(nil)
	var got logger.Logger
	h := s.requestLoggerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	require.NotNil(t, got)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := s.corsMiddleware(next)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/api/v1/status", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/status", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestMetricsMiddleware(t *testing.T) {
	s := newTestServer(nil)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/version", "200"))
	do(t, s, "GET", "/version", "")
	do(t, s, "GET", "/live", "")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/version", "200"))
	assert.Equal(t, before+1, after)

	assert.Zero(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/live", "200")), "health checks are not counted")
}

func TestRateLimitMiddleware(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	codes := make([]int, 0, commandBurst+1)
	for i := 0; i <= commandBurst; i++ {
		codes = append(codes, do(t, s, "POST", "/api/v1/preview/toggle", "").Code)
	}
	assert.Equal(t, http.StatusAccepted, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[commandBurst])
	assert.Equal(t, commandBurst, engine.toggles)
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	s := newTestServer(nil)
	s.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rr := do(t, s, "GET", "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
