// Package pool provides the bounded worker pool that runs parallel-group
// branches.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// PanicError is returned by SubmitWait when a task panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// =============================================================================
// 🧵 协程池
// =============================================================================

// GoroutinePool 有界协程池：最多 MaxWorkers 个 worker 同时执行任务，
// 空闲 worker 在 IdleTimeout 后退出。
type GoroutinePool struct {
	maxWorkers  int
	taskQueue   chan taskWrapper
	workerCount atomic.Int32
	activeCount atomic.Int32
	pending     atomic.Int32
	closed      atomic.Bool
	closeMu     sync.RWMutex
	wg          sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	idleTimeout time.Duration
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// GoroutinePoolConfig 协程池配置
type GoroutinePoolConfig struct {
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers"`
	QueueSize   int           `yaml:"queue_size" json:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// DefaultGoroutinePoolConfig 返回默认配置。每个并行组只有两个分支，
// 因此默认值按少量并发运行设置。
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers:  4,
		QueueSize:   16,
		IdleTimeout: 30 * time.Second,
	}
}

// NewGoroutinePool 创建协程池
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	defaults := DefaultGoroutinePoolConfig()
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = defaults.MaxWorkers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	return &GoroutinePool{
		maxWorkers:  config.MaxWorkers,
		taskQueue:   make(chan taskWrapper, config.QueueSize),
		idleTimeout: config.IdleTimeout,
	}
}

// SubmitWait 提交任务并阻塞直到任务完成。ctx 只在排队阶段可以中断提交，
// 任务一旦入队，调用方总会等到它返回。
// 任务 panic 时返回 *PanicError。
func (p *GoroutinePool) SubmitWait(ctx context.Context, task Task) error {
	p.closeMu.RLock()
	if p.closed.Load() {
		p.closeMu.RUnlock()
		return ErrPoolClosed
	}

	wrapper := taskWrapper{
		task:   task,
		ctx:    ctx,
		result: make(chan error, 1),
	}
	p.submitted.Add(1)
	p.pending.Add(1)
	p.ensureWorker()

	select {
	case p.taskQueue <- wrapper:
		p.closeMu.RUnlock()
	case <-ctx.Done():
		p.pending.Add(-1)
		p.closeMu.RUnlock()
		return ctx.Err()
	}

	// 入队后必须等到 worker 回写结果，取消只通过任务自身的 ctx 传达
	return <-wrapper.result
}

func (p *GoroutinePool) ensureWorker() {
	for {
		current := p.workerCount.Load()
		// 每个未完成的任务最多对应一个 worker
		if current >= int32(p.maxWorkers) || current >= p.pending.Load() {
			return
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *GoroutinePool) worker() {
	defer p.wg.Done()

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case wrapper, ok := <-p.taskQueue:
			if !ok {
				p.workerCount.Add(-1)
				return
			}

			p.activeCount.Add(1)
			err := p.executeTask(wrapper)
			p.activeCount.Add(-1)
			p.pending.Add(-1)

			wrapper.result <- err
			close(wrapper.result)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.idleTimeout)

		case <-timer.C:
			// 空闲超时：始终保留最后一个 worker，避免阻塞中的提交方无人接收
			if current := p.workerCount.Load(); current > 1 && p.workerCount.CompareAndSwap(current, current-1) {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *GoroutinePool) executeTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	if ctxErr := wrapper.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return wrapper.task(wrapper.ctx)
}

// Close 关闭协程池并等待所有 worker 退出
func (p *GoroutinePool) Close() {
	p.closeMu.Lock()
	if p.closed.Swap(true) {
		p.closeMu.Unlock()
		return
	}
	close(p.taskQueue)
	p.closeMu.Unlock()
	p.wg.Wait()
}

// Stats 返回协程池统计信息
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.taskQueue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// GoroutinePoolStats 协程池统计
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
