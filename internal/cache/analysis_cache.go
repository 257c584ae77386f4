package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🔍 分析结果缓存
// =============================================================================

// Invoker 与 tailor.Collaborator 结构一致，避免 cache 依赖 tailor
type Invoker[I, O any] interface {
	Invoke(ctx context.Context, in I) (O, error)
}

// HitRecorder 接收命中与未命中事件，metrics.Collector 实现了它
type HitRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// AnalysisCache 按输入内容哈希缓存协作者的输出。
// Redis 出错时直接调用内部协作者，不影响流水线。
type AnalysisCache[I, O any] struct {
	inner    Invoker[I, O]
	manager  *Manager
	name     string
	ttl      time.Duration
	recorder HitRecorder
	logger   *zap.Logger
}

// AnalysisCacheOption 配置 AnalysisCache
type AnalysisCacheOption func(*analysisCacheOptions)

type analysisCacheOptions struct {
	ttl      time.Duration
	recorder HitRecorder
}

// WithTTL 覆盖默认过期时间
func WithTTL(ttl time.Duration) AnalysisCacheOption {
	return func(o *analysisCacheOptions) { o.ttl = ttl }
}

// WithHitRecorder 设置命中统计接收者
func WithHitRecorder(r HitRecorder) AnalysisCacheOption {
	return func(o *analysisCacheOptions) { o.recorder = r }
}

// NewAnalysisCache 包装 inner，name 用于键空间与指标标签
func NewAnalysisCache[I, O any](inner Invoker[I, O], manager *Manager, name string, logger *zap.Logger, opts ...AnalysisCacheOption) *AnalysisCache[I, O] {
	o := analysisCacheOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisCache[I, O]{
		inner:    inner,
		manager:  manager,
		name:     name,
		ttl:      o.ttl,
		recorder: o.recorder,
		logger:   logger.With(zap.String("component", "analysis_cache"), zap.String("cache", name)),
	}
}

// Invoke 先查缓存，未命中时调用内部协作者并回写
func (c *AnalysisCache[I, O]) Invoke(ctx context.Context, in I) (O, error) {
	key, err := c.key(in)
	if err != nil {
		c.logger.Warn("cache key derivation failed", zap.Error(err))
		return c.inner.Invoke(ctx, in)
	}

	var cached O
	switch err := c.manager.GetJSON(ctx, key, &cached); {
	case err == nil:
		c.hit()
		return cached, nil
	case IsCacheMiss(err):
		c.miss()
	default:
		c.miss()
		c.logger.Warn("cache read failed, calling collaborator", zap.Error(err))
	}

	out, err := c.inner.Invoke(ctx, in)
	if err != nil {
		return out, err
	}

	if err := c.manager.SetJSON(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return out, nil
}

func (c *AnalysisCache[I, O]) key(in I) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key input: %w", err)
	}
	sum := sha256.Sum256(data)
	return c.manager.Key(c.name + ":" + hex.EncodeToString(sum[:])), nil
}

func (c *AnalysisCache[I, O]) hit() {
	if c.recorder != nil {
		c.recorder.RecordCacheHit(c.name)
	}
}

func (c *AnalysisCache[I, O]) miss() {
	if c.recorder != nil {
		c.recorder.RecordCacheMiss(c.name)
	}
}
