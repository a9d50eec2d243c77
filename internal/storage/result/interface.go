// Package result 持久化研究结果，供 API 查询与批量生成断点续跑
package result

import (
	"context"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
)

// Store 研究结果存储
type Store interface {
	// Save 写入结果；相同 ID 覆盖（jsonl 实现追加，读取时以最后一条为准）
	Save(ctx context.Context, r *trace.Result) error
	// Get 不存在返回 errors.ErrNotFound
	Get(ctx context.Context, id string) (*trace.Result, error)
	// List 按写入顺序倒序返回最多 limit 条，limit <= 0 返回全部
	List(ctx context.Context, limit int) ([]*trace.Result, error)
	// Questions 已有结果的问题集合（断点续跑时跳过）
	Questions(ctx context.Context) (map[string]struct{}, error)
	Close() error
}
