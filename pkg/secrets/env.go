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
	"os"
	"strings"
)

type envStore struct{}

// NewEnvStore 从环境变量读取；key 中的 . - / 替换为 _ 并转大写（serper.api_key -> SERPER_API_KEY）
func NewEnvStore() Store {
	return envStore{}
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_", "/", "_").Replace(key))
}

func (envStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(envKey(key)); ok && v != "" {
		return v, nil
	}
	return "", notFound(envKey(key))
}
