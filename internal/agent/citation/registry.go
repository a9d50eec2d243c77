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

// Package citation 追踪片段 ID 的来源：工具输出中的 [serper_1] 等标记在每步被登记，
// 最终答案里的 <cite id="..."> 再据此解析回产生它的工具调用。
package citation

import (
	"sort"
	"strings"
	"sync"
)

// DefaultPrefixes 内置工具输出格式化器使用的片段 ID 前缀
func DefaultPrefixes() []string {
	return []string{"serper_", "s2_paper_", "s2_snippet_", "pubmed_", "crawl4ai_", "jina_", "sportsdb_"}
}

// Registry 可引用片段 ID 的前缀集合；新工具通过 Register 登记自己的前缀
type Registry struct {
	mu       sync.RWMutex
	prefixes map[string]struct{}
}

// NewRegistry 创建 Registry；未传前缀时使用 DefaultPrefixes
func NewRegistry(prefixes ...string) *Registry {
	r := &Registry{prefixes: make(map[string]struct{})}
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes()
	}
	r.Register(prefixes...)
	return r
}

// Register 登记前缀，空串忽略
func (r *Registry) Register(prefixes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			r.prefixes[p] = struct{}{}
		}
	}
}

// Prefixes 返回已登记前缀（排序后）
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.prefixes))
	for p := range r.prefixes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Match id 以某个已登记前缀开头且前缀之后非空
func (r *Registry) Match(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for p := range r.prefixes {
		if len(id) > len(p) && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
