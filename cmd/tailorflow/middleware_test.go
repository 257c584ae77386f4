package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api/handlers"
	"github.com/BaSui01/tailorflow/internal/metrics"
	"github.com/BaSui01/tailorflow/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) handlers.Response {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders()(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler, mark("a"), mark("b"), mark("c")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	})
	handler := RequestID()(inner)

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})

	t.Run("oversized replaced", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		handler.ServeHTTP(httptest.NewRecorder(), r)
		assert.Len(t, seen, 36)
	})
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicking, RequestID(), Recovery(zap.NewNop()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/graph", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"secret", ""}, zap.NewNop())(okHandler)

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"valid key", "/api/v1/tailor", "secret", http.StatusOK},
		{"missing key", "/api/v1/tailor", "", http.StatusUnauthorized},
		{"wrong key", "/api/v1/runs", "nope", http.StatusUnauthorized},
		{"health is open", "/healthz", "", http.StatusOK},
		{"version is open", "/version", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				resp := decodeEnvelope(t, w)
				require.NotNil(t, resp.Error)
				assert.Equal(t, string(types.ErrUnauthorized), resp.Error.Code)
			}
		})
	}
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	handler := APIKeyAuth(nil, zap.NewNop())(okHandler)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tailor", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)
	send := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/graph", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)

	w := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrRateLimited), resp.Error.Code)

	// 其他 IP 有独立配额
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 0, 0, zap.NewNop())(okHandler)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler)

	t.Run("allowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/tailor", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/tailor", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit(8)(okHandler)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/tailor", strings.NewReader(strings.Repeat("a", 32)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/api/v1/tailor", strings.NewReader("small"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWith(reg, "mw", zap.NewNop())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux := http.NewServeMux()
	mux.Handle("/api/v1/graph", okHandler)
	mux.Handle("/api/v1/runs/", notFound)
	handler := MetricsMiddleware(collector)(mux)

	for _, path := range []string{
		"/api/v1/graph",
		"/api/v1/runs/0b5f7c1e-8d2a-4f3b-9c6d-1e2f3a4b5c6d",
		"/api/v1/runs/7d1a9e40-5b6c-4d8e-a1f2-3b4c5d6e7f80",
	} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP mw_http_requests_total Total number of HTTP requests
# TYPE mw_http_requests_total counter
mw_http_requests_total{method="GET",path="/api/v1/graph",status="2xx"} 1
mw_http_requests_total{method="GET",path="/api/v1/runs/:id",status="4xx"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mw_http_requests_total"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/healthz", "/healthz"},
		{"/api/v1/tailor", "/api/v1/tailor"},
		{"/api/v1/runs", "/api/v1/runs"},
		{"/api/v1/runs/0b5f7c1e-8d2a-4f3b-9c6d-1e2f3a4b5c6d", "/api/v1/runs/:id"},
		{"/api/v1/runs/0b5f7c1e-8d2a-4f3b-9c6d-1e2f3a4b5c6d/history", "/api/v1/runs/:id/history"},
		{"/api/v1/runs/12345", "/api/v1/runs/:id"},
		{"/api/v1/unknown", "/api/v1/unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestOTelTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var traceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = types.TraceID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	OTelTracing()(inner).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tailor", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/tailor", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
