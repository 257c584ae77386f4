package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api/handlers"
	"github.com/BaSui01/tailorflow/config"
	"github.com/BaSui01/tailorflow/internal/cache"
	"github.com/BaSui01/tailorflow/internal/database"
	"github.com/BaSui01/tailorflow/internal/metrics"
	"github.com/BaSui01/tailorflow/internal/pool"
	"github.com/BaSui01/tailorflow/internal/runstore"
	"github.com/BaSui01/tailorflow/internal/telemetry"
	"github.com/BaSui01/tailorflow/tailor"
	"github.com/BaSui01/tailorflow/tailor/local"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// resumeAnalysisCacheName 分析缓存的键前缀，完整键为 tailorflow:resume_analysis:<sha256>
const resumeAnalysisCacheName = "resume_analysis"

// App 持有一次进程生命周期内的全部组件，run 与 serve 共用
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	pipeline  *tailor.Pipeline
	history   *wf.ExecutionHistoryStore
	collector *metrics.Collector
	store     *runstore.Store
	db        *database.PoolManager
	cache     *cache.Manager
	otel      *telemetry.Providers
}

// NewApp 按配置装配流水线，指标注册到 reg。Redis 与数据库不可用时降级运行
// 并记录警告，配置错误（如禁用未知阶段）直接返回错误。
func NewApp(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.otel = providers

	a.collector = metrics.NewCollectorWith(reg, "tailorflow", logger)
	observers := []wf.Observer{a.collector}
	if a.otel.Enabled() {
		obs, err := telemetry.NewObserver(nil)
		if err != nil {
			logger.Warn("failed to create otel workflow observer", zap.Error(err))
		} else {
			observers = append(observers, obs)
		}
	}

	collaborators := local.NewCollaborators(local.Config{
		Timeout:       cfg.Pipeline.CollaboratorTimeout,
		RatePerSecond: cfg.Pipeline.CollaboratorRPS,
		Burst:         cfg.Pipeline.CollaboratorBurst,
	})

	if cfg.Redis.Enabled {
		if err := a.openCache(&collaborators); err != nil {
			logger.Warn("redis unavailable, analysis cache disabled", zap.Error(err))
		}
	}

	var recorder tailor.Recorder
	if cfg.Database.Enabled {
		if err := a.openStore(); err != nil {
			logger.Warn("database unavailable, run records disabled", zap.Error(err))
		} else {
			recorder = a.store
		}
	}

	a.history = wf.NewExecutionHistoryStore(cfg.Pipeline.HistoryLimit)

	disabled := make([]wf.PhaseID, 0, len(cfg.Pipeline.Disabled))
	for _, id := range cfg.Pipeline.Disabled {
		disabled = append(disabled, wf.PhaseID(id))
	}

	a.pipeline, err = tailor.NewPipeline(collaborators, tailor.Options{
		Disabled: disabled,
		Pool: pool.GoroutinePoolConfig{
			MaxWorkers:  cfg.Pipeline.MaxWorkers,
			QueueSize:   cfg.Pipeline.QueueSize,
			IdleTimeout: cfg.Pipeline.IdleTimeout,
		},
		History:  a.history,
		Observer: wf.JoinObservers(observers...),
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return a, nil
}

func (a *App) openCache(c *tailor.Collaborators) error {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = a.cfg.Redis.Addr
	cacheCfg.Password = a.cfg.Redis.Password
	cacheCfg.DB = a.cfg.Redis.DB
	if a.cfg.Redis.PoolSize > 0 {
		cacheCfg.PoolSize = a.cfg.Redis.PoolSize
	}
	cacheCfg.MinIdleConns = a.cfg.Redis.MinIdleConns
	if a.cfg.Redis.TTL > 0 {
		cacheCfg.DefaultTTL = a.cfg.Redis.TTL
	}

	manager, err := cache.NewManager(cacheCfg, a.logger)
	if err != nil {
		return err
	}
	a.cache = manager

	c.ResumeAnalyzer = cache.NewAnalysisCache[tailor.ResumeInput, tailor.ResumeAnalysis](
		c.ResumeAnalyzer, manager, resumeAnalysisCacheName, a.logger,
		cache.WithHitRecorder(a.collector),
	)
	return nil
}

func (a *App) openStore() error {
	poolCfg := database.DefaultPoolConfig()
	if a.cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = a.cfg.Database.MaxOpenConns
	}
	if a.cfg.Database.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = a.cfg.Database.MaxIdleConns
	}
	if a.cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = a.cfg.Database.ConnMaxLifetime
	}

	db, err := database.Open(a.cfg.Database.Driver, a.cfg.Database.DSN(), poolCfg, a.logger,
		database.WithStatsReporter(a.collector))
	if err != nil {
		return err
	}

	store, err := runstore.New(db, a.logger, runstore.WithQueryRecorder(a.collector))
	if err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.store = store
	return nil
}

// HealthChecks 返回已启用依赖的健康检查
func (a *App) HealthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if a.store != nil {
		checks = append(checks, handlers.NewDatabaseHealthCheck("database", a.store.Ping))
	}
	if a.cache != nil {
		checks = append(checks, handlers.NewRedisHealthCheck("redis", a.cache.Ping).
			WithDetails(func() any { return a.cache.GetStats() }))
	}
	return checks
}

// Close 按依赖的逆序释放资源
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.otel != nil {
		errs = append(errs, a.otel.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
