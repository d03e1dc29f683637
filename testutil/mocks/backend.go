// ScriptedBackend 是按调用序号返回预设输出的后端测试替身。
//
// 同时实现 llm.Backend 与 llm.AsyncBackend，便于同一脚本驱动同步与异步运行器。
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
)

// --- ScriptedBackend 结构 ---

// ScriptedBackend 第 i 次调用返回 outputs[i]
type ScriptedBackend struct {
	mu sync.Mutex

	outputs []string
	errs    map[int]error
	delay   time.Duration

	// 调用记录
	calls []*llm.Request
}

// NewScriptedBackend 创建脚本后端
func NewScriptedBackend(outputs ...string) *ScriptedBackend {
	return &ScriptedBackend{
		outputs: outputs,
		errs:    make(map[int]error),
	}
}

// --- Builder 方法 ---

// WithErrorAt 第 index 次调用返回 err
func (m *ScriptedBackend) WithErrorAt(index int, err error) *ScriptedBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[index] = err
	return m
}

// WithDelay 设置每次调用的延迟，ctx 结束时提前返回
func (m *ScriptedBackend) WithDelay(d time.Duration) *ScriptedBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// --- 后端接口实现 ---

// Name 返回后端名称
func (m *ScriptedBackend) Name() string {
	return "scripted"
}

// Send 实现 llm.Backend
func (m *ScriptedBackend) Send(ctx context.Context, req *llm.Request) (string, error) {
	m.mu.Lock()
	index := len(m.calls)
	m.calls = append(m.calls, req.Clone())
	delay := m.delay
	err := m.errs[index]
	var out string
	exhausted := index >= len(m.outputs)
	if !exhausted {
		out = m.outputs[index]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}
	if exhausted {
		return "", types.NewError(types.ErrTransport, fmt.Sprintf("script exhausted after %d outputs", len(m.outputs)))
	}
	return out, nil
}

// SendAsync 实现 llm.AsyncBackend
func (m *ScriptedBackend) SendAsync(ctx context.Context, req *llm.Request) <-chan llm.Response {
	ch := make(chan llm.Response, 1)
	go func() {
		defer close(ch)
		text, err := m.Send(ctx, req)
		ch <- llm.Response{Text: text, Err: err}
	}()
	return ch
}

// --- 调用记录查询 ---

// Calls 返回所有已记录请求的副本
func (m *ScriptedBackend) Calls() []*llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *ScriptedBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最近一次请求
func (m *ScriptedBackend) LastCall() *llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Reset 清空调用记录
func (m *ScriptedBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
