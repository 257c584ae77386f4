package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()

	mr := miniredis.RunT(t)

	config := Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager(t *testing.T) {
	_, manager := setupTestRedis(t)

	assert.NotNil(t, manager.redis)
	assert.NotNil(t, manager.logger)
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", "test-value", time.Minute))

	value, err := manager.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)
}

func TestManager_GetNonExistent(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))
	require.NoError(t, manager.Delete(ctx, "k"))

	_, err := manager.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))

	assert.NoError(t, manager.Delete(ctx))
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name   string   `json:"name"`
		Skills []string `json:"skills"`
	}
	in := payload{Name: "Jane", Skills: []string{"Go", "Redis"}}

	require.NoError(t, manager.SetJSON(ctx, "json", in, 0))

	var out payload
	require.NoError(t, manager.GetJSON(ctx, "json", &out))
	assert.Equal(t, in, out)
}

func TestManager_SetJSONInvalidData(t *testing.T) {
	_, manager := setupTestRedis(t)

	err := manager.SetJSON(context.Background(), "bad", make(chan int), 0)
	assert.Error(t, err)
}

func TestManager_GetJSONInvalidJSON(t *testing.T) {
	mr, manager := setupTestRedis(t)
	require.NoError(t, mr.Set("broken", "{not json"))

	var out map[string]any
	err := manager.GetJSON(context.Background(), "broken", &out)
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Key(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.Equal(t, "test:resume", manager.Key("resume"))
}

func TestManager_Stats(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	_, _ = manager.Get(ctx, "a")
	_, _ = manager.Get(ctx, "b")

	stats := manager.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestManager_Close(t *testing.T) {
	_, manager := setupTestRedis(t)

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Ping(context.Background()), ErrClosed)
}

func TestManager_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:                mr.Addr(),
		HealthCheckInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, manager.Ping(context.Background()))
	assert.NoError(t, manager.Close())
}

func TestNewManagerFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	manager := NewManagerFromClient(client, Config{Addr: mr.Addr(), KeyPrefix: "shared:"}, nil)
	t.Cleanup(func() { _ = manager.Close() })

	ctx := context.Background()
	require.NoError(t, manager.Set(ctx, manager.Key("k"), "v", time.Minute))
	assert.True(t, mr.Exists("shared:k"))
}
