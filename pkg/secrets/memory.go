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

package secrets

import (
	"context"
	"maps"
)

// memoryStore 固定内容的密钥表，用于测试与本地运行
type memoryStore map[string]string

// NewMemoryStore 以 values 的副本创建内存 store
func NewMemoryStore(values map[string]string) Store {
	m := make(memoryStore, len(values))
	maps.Copy(m, values)
	return m
}

func (m memoryStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", notFound(key)
}
