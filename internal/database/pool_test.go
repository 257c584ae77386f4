package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

type statsRecorder struct {
	mu    sync.Mutex
	calls map[string][2]int
}

func (r *statsRecorder) RecordDBConnections(database string, open, idle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string][2]int{}
	}
	r.calls[database] = [2]int{open, idle}
}

func (r *statsRecorder) seen(database string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.calls[database]
	return ok
}

func TestNewPoolManager(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	config := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}
	manager, err := NewPoolManager(gormDB, config, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, gormDB, manager.DB())
	assert.Equal(t, "postgres", manager.Name())
	assert.Equal(t, config, manager.config)
	assert.Equal(t, 10, manager.Stats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	}))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err = manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry_NonRetryable(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		attempts++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, attempts)
}

func TestPoolManager_Close(t *testing.T) {
	_, mock, gormDB := setupTestDB(t)

	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, manager.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_SQLiteReportsStats(t *testing.T) {
	rec := &statsRecorder{}
	config := DefaultPoolConfig()
	config.HealthCheckInterval = 10 * time.Millisecond

	manager, err := Open("sqlite", ":memory:", config, zap.NewNop(), WithStatsReporter(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	assert.Equal(t, "sqlite", manager.Name())
	assert.Equal(t, 1, manager.Stats().MaxOpenConnections)
	require.NoError(t, manager.Ping(context.Background()))

	assert.Eventually(t, func() bool { return rec.seen("sqlite") }, time.Second, 10*time.Millisecond)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("deadlock detected"), true},
		{errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("driver: bad connection"), true},
		{errors.New("unique constraint failed"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}
