package research

import (
	"sync"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
)

// Status Agent 循环状态
type Status string

const (
	StatusRunning            Status = "running"
	StatusToolExecuting      Status = "tool_executing"
	StatusAnswered           Status = "answered"
	StatusStepLimitExceeded  Status = "step_limit_exceeded"
	StatusTokenLimitExceeded Status = "token_limit_exceeded"
	StatusFatalError         Status = "fatal_error"
)

// Terminal 是否为终止状态
func (s Status) Terminal() bool {
	switch s {
	case StatusAnswered, StatusStepLimitExceeded, StatusTokenLimitExceeded, StatusFatalError:
		return true
	}
	return false
}

// Monitor 单个 Agent 实例的 token 计数器，不在 Agent 之间共享
type Monitor struct {
	mu    sync.Mutex
	total trace.TokenUsage
	calls int
}

// Record 记录一次模型调用的用量，返回换算后的单步用量；usage 为 nil 时只计调用次数
func (m *Monitor) Record(usage *llm.Usage) *trace.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if usage == nil {
		return nil
	}
	u := trace.TokenUsage{Input: usage.InputTokens, Output: usage.OutputTokens, Total: usage.TotalTokens}
	m.total.Add(u)
	return &u
}

// OutputTokens 累计输出 token
func (m *Monitor) OutputTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total.Output
}

// Totals 累计用量
func (m *Monitor) Totals() trace.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Calls 模型调用次数
func (m *Monitor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Reset 清零
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = trace.TokenUsage{}
	m.calls = 0
}
