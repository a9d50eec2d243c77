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
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/storage/cache"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/log"
)

// Registry 工具注册表：注册、发现、参数校验、限流与缓存后的统一分发
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]tool.Tool
	validator *validator

	prefixes *citation.Registry
	limiter  *ToolRateLimiter
	cache    cache.Store
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

// Option 注册表选项
type Option func(*Registry)

// WithPrefixRegistry 工具注册时把其 snippet 前缀登记到 citation 前缀表
func WithPrefixRegistry(p *citation.Registry) Option {
	return func(r *Registry) { r.prefixes = p }
}

// WithRateLimiter 按工具名限流
func WithRateLimiter(l *ToolRateLimiter) Option {
	return func(r *Registry) { r.limiter = l }
}

// WithCache 缓存成功的工具结果，ttl<=0 时不缓存
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = store
		r.cacheTTL = ttl
	}
}

// WithTimeout 单次工具调用超时
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New 创建新的 ToolRegistry
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:     make(map[string]tool.Tool),
		validator: newValidator(),
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册工具；实现 tool.SnippetPrefixer 的工具同时登记其 snippet 前缀
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	r.tools[t.Name()] = t
	r.mu.Unlock()

	r.validator.forget(t.Name())
	if sp, ok := t.(tool.SnippetPrefixer); ok && r.prefixes != nil {
		r.prefixes.Register(sp.SnippetPrefixes()...)
	}
}

// RateLimitStats 各已注册工具的限流状态；未配置限流器或工具尚未被调用时不出现
func (r *Registry) RateLimitStats() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	if r.limiter == nil {
		return out
	}
	for _, name := range r.Names() {
		if stats := r.limiter.GetStats(name); stats != nil {
			out[name] = stats
		}
	}
	return out
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 返回所有已注册工具，按名称排序
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Names 已注册工具名，按名称排序
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name()
	}
	return names
}

// LinkKind 工具输出链接的归类，未实现 tool.Linker 的工具返回 tool.LinkNone
func (r *Registry) LinkKind(name string) tool.LinkKind {
	t, ok := r.Get(name)
	if !ok {
		return tool.LinkNone
	}
	if l, ok := t.(tool.Linker); ok {
		return l.LinkKind()
	}
	return tool.LinkNone
}

// ToolSchemaForLLM 单个工具供 LLM 使用的描述（name, description, parameters）
type ToolSchemaForLLM struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  tool.Schema `json:"parameters"`
}

// Schemas 返回所有工具的描述，按名称排序
func (r *Registry) Schemas() []ToolSchemaForLLM {
	list := r.List()
	out := make([]ToolSchemaForLLM, 0, len(list))
	for _, t := range list {
		out = append(out, ToolSchemaForLLM{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

// SchemasForLLM 返回所有工具的 Schema 列表（JSON，用于拼接系统提示词与 /api/tools）
func (r *Registry) SchemasForLLM() ([]byte, error) {
	return json.Marshal(r.Schemas())
}

// Specs 原生 function-calling 使用的工具描述
func (r *Registry) Specs() ([]llm.ToolSpec, error) {
	schemas := r.Schemas()
	specs := make([]llm.ToolSpec, 0, len(schemas))
	for _, s := range schemas {
		params, err := json.Marshal(s.Parameters)
		if err != nil {
			return nil, err
		}
		specs = append(specs, llm.ToolSpec{Name: s.Name, Description: s.Description, Parameters: params})
	}
	return specs, nil
}
