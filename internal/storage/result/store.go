package result

import (
	"context"
	"fmt"

	"github.com/AthenaAgent/athena-dr/pkg/config"
)

// NewStore 根据配置创建结果存储
func NewStore(ctx context.Context, cfg config.ResultStoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres result store requires dsn")
		}
		return NewPgStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported result store type: %s", cfg.Type)
	}
}
