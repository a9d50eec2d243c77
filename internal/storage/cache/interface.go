package cache

import (
	"context"
	"time"

	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.Wrap(errors.ErrNotFound, "cache miss")

// Store 工具结果缓存；值以 JSON 序列化存储
type Store interface {
	// Set expiration <= 0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 未命中返回 ErrMiss
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除本缓存名下的全部键
	Clear(ctx context.Context) error
	Close() error
}
