package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func get(t *testing.T, addr string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// --- DefaultConfig ---

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Minute, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

// --- NewManager ---

func TestNewManager(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), DefaultConfig(), nil)

	require.NotNil(t, m)
	assert.True(t, m.IsRunning())
	assert.Equal(t, "api", m.Name())
	assert.Equal(t, ":8080", m.Addr())
	assert.Empty(t, m.ListenAddr())
}

// --- Start / Shutdown lifecycle ---

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager("api", okHandler(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	code, body := get(t, m.ListenAddr())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.ListenAddr())
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	assert.ErrorContains(t, err, "already started")
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	assert.ErrorContains(t, m.Start(), "closed")
}

func TestManager_ListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig()
	cfg.Addr = busy.Addr().String()
	m := NewManager("api", http.NewServeMux(), cfg, zap.NewNop())

	assert.ErrorContains(t, m.Start(), "failed to listen")
}

func TestManager_Errors(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), zap.NewNop())

	select {
	case <-m.Errors():
		t.Fatal("should not have received an error")
	default:
	}
}

// --- Run ---

func TestRun_ServesUntilContextDone(t *testing.T) {
	api := NewManager("api", okHandler(), testConfig(), zap.NewNop())
	metrics := NewManager("metrics", okHandler(), testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, api, metrics) }()

	require.Eventually(t, func() bool {
		return api.ListenAddr() != "" && metrics.ListenAddr() != ""
	}, time.Second, 10*time.Millisecond)

	code, _ := get(t, api.ListenAddr())
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, metrics.ListenAddr())
	assert.Equal(t, http.StatusOK, code)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, api.IsRunning())
	assert.False(t, metrics.IsRunning())
}

func TestRun_StartFailureStopsStartedServers(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	first := NewManager("api", okHandler(), testConfig(), zap.NewNop())
	cfg := testConfig()
	cfg.Addr = busy.Addr().String()
	second := NewManager("metrics", okHandler(), cfg, zap.NewNop())

	err = Run(context.Background(), first, second)
	assert.ErrorContains(t, err, "failed to listen")
	assert.False(t, first.IsRunning())
}
