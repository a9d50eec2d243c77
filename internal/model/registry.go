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

package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/pkg/config"
)

// Registry 按 "provider.model_key" 解析并缓存 LLM 客户端；同一 Registry 内的客户端共享 rate_limits.llm 限流器
type Registry struct {
	cfg     *config.Config
	limiter *llm.LLMRateLimiter

	mu      sync.RWMutex
	clients map[string]llm.Client
}

// NewRegistry 创建模型注册表
func NewRegistry(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Registry{
		cfg:     cfg,
		limiter: llm.NewLLMRateLimiterFromConfig(cfg.RateLimits),
		clients: make(map[string]llm.Client),
	}
}

// Register 注册 LLM 实现（测试或自定义 provider 使用），不经过限流包装
func (r *Registry) Register(key string, c llm.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[key] = c
}

// LLM 按 key 获取客户端，首次访问时根据 model.llm.providers 创建
func (r *Registry) LLM(key string) (llm.Client, error) {
	r.mu.RLock()
	c, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	provider, modelKey, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	pc, ok := r.cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	name := mi.Name
	if name == "" {
		name = modelKey
	}
	inner, err := llm.NewClient(provider, name, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}
	c = llm.NewRateLimitedClient(inner, r.limiter)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[key]; ok {
		return existing, nil
	}
	r.clients[key] = c
	return c, nil
}

// RateLimitStats 已创建客户端所属 provider 的限流状态
func (r *Registry) RateLimitStats() map[string]map[string]interface{} {
	r.mu.RLock()
	providers := make(map[string]struct{}, len(r.clients))
	for key := range r.clients {
		if p, _, err := ParseKey(key); err == nil {
			providers[p] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(providers))
	for p := range providers {
		out[p] = r.limiter.GetStats(p)
	}
	return out
}

// Default 返回 model.defaults.llm 对应的客户端
func (r *Registry) Default() (llm.Client, error) {
	if r.cfg.Model.Defaults.LLM == "" {
		return nil, fmt.Errorf("model.defaults.llm 未配置")
	}
	return r.LLM(r.cfg.Model.Defaults.LLM)
}

// ParseKey 拆分 "provider.model_key"
func ParseKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_41，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
