package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api/handlers"
	"github.com/BaSui01/tailorflow/config"
	"github.com/BaSui01/tailorflow/internal/server"
)

// =============================================================================
// 🖥️ HTTP 服务
// =============================================================================

// Server 组装 API 与 metrics 两个 HTTP 服务器
type Server struct {
	cfg    *config.Config
	app    *App
	logger *zap.Logger
}

// NewServer 创建服务
func NewServer(cfg *config.Config, app *App, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, app: app, logger: logger}
}

// Run 启动服务并阻塞到收到 SIGINT/SIGTERM 或任一服务器出错，随后优雅关闭
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	managers := []*server.Manager{
		server.NewManager("api", s.apiHandler(ctx), s.serverConfig(s.cfg.Server.HTTPPort), s.logger),
	}
	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		managers = append(managers,
			server.NewManager("metrics", mux, s.serverConfig(s.cfg.Server.MetricsPort), s.logger))
	}

	runErr := server.Run(ctx, managers...)

	closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.app.Close(closeCtx); err != nil {
		s.logger.Warn("failed to release resources", zap.Error(err))
	}
	return runErr
}

func (s *Server) serverConfig(port int) server.Config {
	c := server.DefaultConfig()
	c.Addr = fmt.Sprintf(":%d", port)
	if s.cfg.Server.ReadTimeout > 0 {
		c.ReadTimeout = s.cfg.Server.ReadTimeout
	}
	if s.cfg.Server.WriteTimeout > 0 {
		c.WriteTimeout = s.cfg.Server.WriteTimeout
	}
	if s.cfg.Server.ShutdownTimeout > 0 {
		c.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	}
	return c
}

// apiHandler 注册路由并套上中间件链。ctx 控制限流器清理协程的生命周期。
func (s *Server) apiHandler(ctx context.Context) http.Handler {
	app := s.app

	tailorHandler := handlers.NewTailorHandler(app.pipeline, s.cfg.Pipeline.Threshold, s.cfg.Pipeline.RunTimeout, s.logger)

	// 未启用数据库时必须传入 nil 接口，而不是 nil *runstore.Store
	var runs handlers.RunReader
	if app.store != nil {
		runs = app.store
	}
	runsHandler := handlers.NewRunsHandler(runs, app.history, s.logger)

	health := handlers.NewHealthHandler(s.logger)
	for _, check := range app.HealthChecks() {
		health.RegisterCheck(check)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tailor", tailorHandler.HandleTailor)
	mux.HandleFunc("GET /api/v1/graph", tailorHandler.HandleGraph)
	mux.HandleFunc("GET /api/v1/runs", runsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/runs/{id}", runsHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/runs/{id}/history", runsHandler.HandleHistory)
	mux.HandleFunc("GET /api/v1/history", runsHandler.HandleListHistory)
	mux.HandleFunc("GET /health", health.HandleHealthz)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(app.collector),
		CORS(s.cfg.Server.AllowedOrigins),
		BodyLimit(s.cfg.Server.MaxBodyBytes),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, s.logger),
	)
}
