package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/tailorflow/internal/database"
	"github.com/BaSui01/tailorflow/tailor"
)

// =============================================================================
// 📜 运行记录存储
// =============================================================================

// ErrNotFound 运行记录不存在
var ErrNotFound = errors.New("run record not found")

// RunRecord 一次定制运行的持久化摘要
type RunRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Graph        string    `gorm:"size:64" json:"graph"`
	Status       string    `gorm:"size:16;index" json:"status"`
	Threshold    float64   `json:"threshold"`
	Score        *float64  `json:"score,omitempty"`
	Visited      []string  `gorm:"serializer:json" json:"visited"`
	Completed    []string  `gorm:"serializer:json" json:"completed"`
	Messages     []string  `gorm:"serializer:json" json:"messages"`
	FellBack     []string  `gorm:"serializer:json" json:"fell_back,omitempty"`
	ErrorCode    string    `gorm:"size:32" json:"error_code,omitempty"`
	ErrorPhase   string    `gorm:"size:64" json:"error_phase,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (RunRecord) TableName() string { return "tailor_runs" }

// QueryRecorder 接收查询耗时，metrics.Collector 实现了它
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

// ListOptions 列表查询条件
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
	writeRetries     = 3
)

// Store 基于 GORM 的运行记录存储，实现 tailor.Recorder
type Store struct {
	pool    *database.PoolManager
	queries QueryRecorder
	logger  *zap.Logger
}

var _ tailor.Recorder = (*Store)(nil)

// Option 配置 Store
type Option func(*Store)

// WithQueryRecorder 上报每次查询耗时
func WithQueryRecorder(r QueryRecorder) Option {
	return func(s *Store) { s.queries = r }
}

// New 创建存储并迁移表结构
func New(pool *database.PoolManager, logger *zap.Logger, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "runstore")),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := pool.DB().AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run records: %w", err)
	}
	return s, nil
}

// Record 保存一次运行的摘要
func (s *Store) Record(ctx context.Context, b *tailor.Bundle) error {
	if b == nil || b.RunID == "" {
		return fmt.Errorf("bundle has no run id")
	}
	rec := FromBundle(b)

	defer s.observe("insert", time.Now())
	err := s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", b.RunID, err)
	}

	s.logger.Debug("run recorded",
		zap.String("run_id", rec.ID),
		zap.String("status", rec.Status),
	)
	return nil
}

// Get 按 ID 读取运行记录
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	defer s.observe("get", time.Now())

	var rec RunRecord
	err := s.pool.DB().WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &rec, nil
}

// List 按创建时间倒序列出运行记录
func (s *Store) List(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	defer s.observe("list", time.Now())

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.pool.DB().WithContext(ctx).Order("created_at DESC").Limit(limit)
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	var out []RunRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// Ping 检查底层数据库
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) observe(op string, start time.Time) {
	if s.queries != nil {
		s.queries.RecordDBQuery(s.pool.Name(), op, time.Since(start))
	}
}

// FromBundle 把 Bundle 投影为 RunRecord
func FromBundle(b *tailor.Bundle) *RunRecord {
	rec := &RunRecord{
		ID:         b.RunID,
		Graph:      tailor.GraphName,
		Status:     string(b.Status),
		Threshold:  b.Threshold,
		Visited:    phaseStrings(b.Visited),
		Completed:  phaseStrings(b.CompletedPhases),
		StartedAt:  b.StartedAt,
		DurationMS: b.Duration.Milliseconds(),
	}
	if b.ComplianceResult != nil {
		score := b.ComplianceResult.Value
		rec.Score = &score
	}
	for _, m := range b.Messages {
		rec.Messages = append(rec.Messages, m.Text)
	}
	for _, r := range []*tailor.SectionResult{b.WorkExperienceResult, b.SkillsResult} {
		if r != nil && r.FellBack {
			rec.FellBack = append(rec.FellBack, r.Section)
		}
	}
	if b.Error != nil {
		rec.ErrorCode = string(b.Error.Code)
		rec.ErrorPhase = b.Error.Phase
		rec.ErrorMessage = b.Error.Message
	}
	return rec
}

func phaseStrings[T ~string](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
