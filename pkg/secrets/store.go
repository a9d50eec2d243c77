// Copyright 2026 fanjia1024
// Read-only secret lookup for tool, model and grader API keys

package secrets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

// RefPrefix 配置中以此前缀开头的值从 Store 读取，如 "secret:SERPER_API_KEY"
const RefPrefix = "secret:"

// Store 只读密钥存储；key 不存在时返回的错误满足 errors.Is(err, errors.ErrNotFound)
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string            // env | memory | vault
	Static   map[string]string // provider=memory 时的初始值
	Vault    VaultConfig       // provider=vault 时使用
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(config.Static), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

func notFound(key string) error {
	return errors.Wrapf(errors.ErrNotFound, "secret %s", key)
}

// IsRef 判断配置值是否为密钥引用
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve 若 value 为 "secret:KEY" 引用则从 store 读取，否则原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimSpace(strings.TrimPrefix(value, RefPrefix))
	if key == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "empty secret reference")
	}
	if store == nil {
		return "", fmt.Errorf("secret %s referenced but no secret store configured", key)
	}
	return store.Get(ctx, key)
}

// ResolveFields 原地解析一组配置字段；name 仅用于错误信息，按名称顺序处理
func ResolveFields(ctx context.Context, store Store, fields map[string]*string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ptr := fields[name]
		if ptr == nil {
			continue
		}
		v, err := Resolve(ctx, store, *ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*ptr = v
	}
	return nil
}
