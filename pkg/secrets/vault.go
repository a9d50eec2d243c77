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
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // 如 http://vault:8200
	Token      string
	PathPrefix string // KV v2 挂载点，默认 "secret"
}

// vaultStore 基于 KV v2 引擎，读取 {mount}/data/{key}
type vaultStore struct {
	client *vault.Client
	mount  string
}

// NewVaultStore 创建 Vault secret store
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	return newVaultStoreWithClient(client, config.PathPrefix), nil
}

func newVaultStoreWithClient(client *vault.Client, mount string) *vaultStore {
	mount = strings.Trim(mount, "/")
	if mount == "" {
		mount = "secret"
	}
	return &vaultStore{client: client, mount: mount}
}

func (v *vaultStore) dataPath(key string) string {
	return fmt.Sprintf("%s/data/%s", v.mount, strings.TrimPrefix(key, "/"))
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.dataPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", notFound(key)
	}
	return extractValue(key, secret.Data)
}

// extractValue 兼容 KV v2（data.data.value）与 KV v1（data.value）两种返回
func extractValue(key string, data map[string]interface{}) (string, error) {
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}
	if s, ok := data["value"].(string); ok {
		return s, nil
	}
	for _, val := range data {
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	return "", notFound(key)
}
