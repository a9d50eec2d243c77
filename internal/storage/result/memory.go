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

package result

import (
	"context"
	"sync"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

// MemoryStore 进程内结果存储
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*trace.Result
	order []string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*trace.Result)}
}

// Save 保存结果
func (s *MemoryStore) Save(ctx context.Context, r *trace.Result) error {
	if r == nil || r.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "result id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	cp := *r
	s.byID[r.ID] = &cp
	return nil
}

// Get 按 ID 获取
func (s *MemoryStore) Get(ctx context.Context, id string) (*trace.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "result %s", id)
	}
	cp := *r
	return &cp, nil
}

// List 最新在前
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*trace.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trace.Result, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *s.byID[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// Questions 已保存结果的问题集合
func (s *MemoryStore) Questions(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := make(map[string]struct{}, len(s.byID))
	for _, r := range s.byID {
		qs[r.Question] = struct{}{}
	}
	return qs, nil
}

// Close 无资源需要释放
func (s *MemoryStore) Close() error { return nil }
