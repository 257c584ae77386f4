// MockCollaborator 的协作者测试模拟实现。
//
// 支持固定响应、按调用序号响应、延迟与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"
)

// --- MockCollaborator 结构 ---

// MockCollaborator 是任意 Invoke(ctx, I) (O, error) 协作者的模拟实现。
// 它在结构上满足 tailor.Collaborator[I, O]。
type MockCollaborator[I, O any] struct {
	mu sync.Mutex

	// 响应配置
	response  O
	sequence  []O
	err       error
	fn        func(ctx context.Context, in I) (O, error)
	delay     time.Duration
	failAfter int

	// 调用记录
	calls []I
}

// NewMockCollaborator 创建新的 MockCollaborator
func NewMockCollaborator[I, O any]() *MockCollaborator[I, O] {
	return &MockCollaborator[I, O]{}
}

// --- Builder 方法 ---

// WithResponse 设置固定响应
func (m *MockCollaborator[I, O]) WithResponse(out O) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = out
	return m
}

// WithSequence 按调用顺序依次返回，用尽后重复最后一个
func (m *MockCollaborator[I, O]) WithSequence(outs ...O) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = outs
	return m
}

// WithError 设置返回错误
func (m *MockCollaborator[I, O]) WithError(err error) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFunc 设置自定义调用函数，优先级最高
func (m *MockCollaborator[I, O]) WithFunc(fn func(ctx context.Context, in I) (O, error)) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithDelay 设置响应延迟，ctx 结束时提前返回
func (m *MockCollaborator[I, O]) WithDelay(d time.Duration) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置在第 N 次调用后返回 WithError 配置的错误
func (m *MockCollaborator[I, O]) WithFailAfter(n int) *MockCollaborator[I, O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// --- 接口实现 ---

// Invoke 记录调用并返回配置的结果
func (m *MockCollaborator[I, O]) Invoke(ctx context.Context, in I) (O, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	n := len(m.calls)
	fn, delay, err, failAfter := m.fn, m.delay, m.err, m.failAfter
	out := m.response
	if len(m.sequence) > 0 {
		idx := n - 1
		if idx >= len(m.sequence) {
			idx = len(m.sequence) - 1
		}
		out = m.sequence[idx]
	}
	m.mu.Unlock()

	var zero O
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, in)
	}
	if err != nil && (failAfter == 0 || n > failAfter) {
		return zero, err
	}
	return out, nil
}

// --- 调用记录 ---

// Calls 返回所有调用输入的副本
func (m *MockCollaborator[I, O]) Calls() []I {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]I, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockCollaborator[I, O]) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最后一次调用的输入
func (m *MockCollaborator[I, O]) LastCall() (I, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		var zero I
		return zero, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset 清空调用记录
func (m *MockCollaborator[I, O]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
