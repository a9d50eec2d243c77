// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AthenaAgent/athena-dr/pkg/config"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
)

// ToolLimitConfig Tool 限流配置
type ToolLimitConfig struct {
	QPS           float64 // 每秒请求数限制
	MaxConcurrent int     // 最大并发数
	Burst         int     // 令牌桶容量（可选，默认为 QPS）
}

// ToolRateLimiter Tool 维度的限流器，支持 QPS + 并发控制
type ToolRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*toolLimiter // toolName -> limiter
	defaults ToolLimitConfig
}

type toolLimiter struct {
	rateLimiter *rate.Limiter // QPS 限流器
	semaphore   chan struct{} // 并发控制
	config      ToolLimitConfig
}

// DefaultToolLimit 未单独配置的工具使用的限流
var DefaultToolLimit = ToolLimitConfig{QPS: 10, MaxConcurrent: 8, Burst: 10}

// NewToolRateLimiter 创建 Tool 限流器
func NewToolRateLimiter(configs map[string]ToolLimitConfig, defaults *ToolLimitConfig) *ToolRateLimiter {
	d := DefaultToolLimit
	if defaults != nil {
		d = *defaults
	}
	l := &ToolRateLimiter{
		limiters: make(map[string]*toolLimiter),
		defaults: d,
	}
	for name, c := range configs {
		l.limiters[name] = newToolLimiter(c)
	}
	return l
}

// NewToolRateLimiterFromConfig 从 rate_limits.tools 构建；键 "default" 作为兜底配置
func NewToolRateLimiterFromConfig(cfg config.RateLimitsConfig) *ToolRateLimiter {
	configs := make(map[string]ToolLimitConfig, len(cfg.Tools))
	var defaults *ToolLimitConfig
	for name, c := range cfg.Tools {
		lc := ToolLimitConfig{QPS: c.QPS, MaxConcurrent: c.MaxConcurrent, Burst: c.Burst}
		if name == "default" {
			defaults = &lc
			continue
		}
		configs[name] = lc
	}
	return NewToolRateLimiter(configs, defaults)
}

func newToolLimiter(c ToolLimitConfig) *toolLimiter {
	if c.Burst <= 0 {
		c.Burst = int(c.QPS)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	tl := &toolLimiter{config: c}
	if c.QPS > 0 {
		tl.rateLimiter = rate.NewLimiter(rate.Limit(c.QPS), c.Burst)
	}
	if c.MaxConcurrent > 0 {
		tl.semaphore = make(chan struct{}, c.MaxConcurrent)
	}
	return tl
}

func (t *ToolRateLimiter) get(toolName string) *toolLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	tl, ok := t.limiters[toolName]
	if !ok {
		tl = newToolLimiter(t.defaults)
		t.limiters[toolName] = tl
	}
	return tl
}

// Wait 等待获取执行许可（阻塞直到可以执行），成功后须调用 Release
func (t *ToolRateLimiter) Wait(ctx context.Context, toolName string) error {
	tl := t.get(toolName)
	start := time.Now()
	defer func() {
		metrics.RateLimitWaitSeconds.WithLabelValues("tool", toolName).Observe(time.Since(start).Seconds())
	}()

	if tl.rateLimiter != nil {
		if err := tl.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	if tl.semaphore != nil {
		select {
		case tl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot（在 tool 执行完成后调用）
func (t *ToolRateLimiter) Release(toolName string) {
	tl := t.get(toolName)
	if tl.semaphore == nil {
		return
	}
	select {
	case <-tl.semaphore:
	default:
	}
}

// GetStats 获取限流统计信息
func (t *ToolRateLimiter) GetStats(toolName string) map[string]interface{} {
	t.mu.Lock()
	tl, ok := t.limiters[toolName]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	stats := map[string]interface{}{
		"qps":            tl.config.QPS,
		"max_concurrent": tl.config.MaxConcurrent,
	}
	if tl.semaphore != nil {
		stats["current_concurrent"] = len(tl.semaphore)
		stats["available_slots"] = cap(tl.semaphore) - len(tl.semaphore)
	}
	return stats
}
