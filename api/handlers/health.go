package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger  *zap.Logger
	checks  []HealthCheck
	timeout time.Duration
	mu      sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CriticalCheck 由检查自行声明失败是否让服务不可用；未实现时视为关键
type CriticalCheck interface {
	Critical() bool
}

// DetailedCheck 在检查结果中附带运行时细节，例如缓存命中统计
type DetailedCheck interface {
	Details() any
}

// 健康状态
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // "pass", "fail"
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger,
		checks:  make([]HealthCheck, 0),
		timeout: 5 * time.Second,
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealthz 处理 /healthz 请求（存活探针，只说明进程在运行）
// @Summary 存活探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	})
}

// HandleReady 处理 /ready 请求。关键检查失败返回 503，
// 非关键检查（如分析缓存）失败返回 200 + degraded。
// @Summary 就绪检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪"
// @Failure 503 {object} HealthStatus "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.Evaluate(r.Context())

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// Evaluate 执行全部检查并汇总状态
func (h *HealthHandler) Evaluate(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{
			Status:   "pass",
			Critical: isCritical(check),
			Latency:  latency.String(),
		}
		if d, ok := check.(DetailedCheck); ok {
			result.Details = d.Details()
		}

		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()

			if result.Critical {
				status.Status = StatusUnhealthy
			} else if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}

			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Bool("critical", result.Critical),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}

		status.Checks[check.Name()] = result
	}

	return status
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

func isCritical(check HealthCheck) bool {
	if c, ok := check.(CriticalCheck); ok {
		return c.Critical()
	}
	return true
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 基于 ping 函数的健康检查，运行记录库与 Redis 缓存都用它
type PingCheck struct {
	name     string
	critical bool
	ping     func(ctx context.Context) error
	details  func() any
}

// NewDatabaseHealthCheck 创建数据库健康检查，失败即不可用
func NewDatabaseHealthCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, critical: true, ping: ping}
}

// NewRedisHealthCheck 创建 Redis 健康检查。缓存失效时流水线仍可运行，因此非关键。
func NewRedisHealthCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, critical: false, ping: ping}
}

// WithDetails 附加一个细节提供函数，结果写入 CheckResult.Details
func (c *PingCheck) WithDetails(fn func() any) *PingCheck {
	c.details = fn
	return c
}

func (c *PingCheck) Name() string   { return c.name }
func (c *PingCheck) Critical() bool { return c.critical }

func (c *PingCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}

func (c *PingCheck) Details() any {
	if c.details == nil {
		return nil
	}
	return c.details()
}
