package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
	"github.com/AthenaAgent/athena-dr/pkg/tracing"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// Dispatch 按名称执行工具：参数转换与校验、限流、缓存、超时。
// 返回 error 表示调用未能完成（未知工具、参数非法、超时、传输失败）；
// 工具自身报告的失败放在 ToolResult.Err。
func (r *Registry) Dispatch(ctx context.Context, name, callID string, args map[string]any) (tool.ToolResult, error) {
	t, ok := r.Get(name)
	if !ok {
		metrics.ToolCallTotal.WithLabelValues("unknown", "error").Inc()
		return tool.ToolResult{}, errors.Wrapf(errors.ErrToolNotFound, "%s", name)
	}
	args = conform(t.Schema(), args)
	if err := r.validator.validate(t, args); err != nil {
		metrics.ToolCallTotal.WithLabelValues(name, "invalid").Inc()
		return tool.ToolResult{}, err
	}

	ctx, span := tracing.StartToolSpan(ctx, name, callID)
	defer span.End()

	key := cacheKey(name, args)
	if qs, ok := t.(tool.QuestionScoped); ok && qs.QuestionScoped() {
		key += ":" + utils.ShortHash(tool.QuestionFrom(ctx))
	}
	if res, ok := r.cached(ctx, key); ok {
		metrics.ToolCacheHits.WithLabelValues(name).Inc()
		return res, nil
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, name); err != nil {
			tracing.RecordError(span, err)
			return tool.ToolResult{}, err
		}
		defer r.limiter.Release(name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := t.Execute(ctx, args)
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out after %s: %w", name, r.timeout, err)
		}
		metrics.ToolCallTotal.WithLabelValues(name, "error").Inc()
		tracing.RecordError(span, err)
		r.logger.Warn("tool call failed", "tool", name, "call_id", callID, "error", err)
		return tool.ToolResult{}, err
	}
	if res.Failed() {
		metrics.ToolCallTotal.WithLabelValues(name, "error").Inc()
		r.logger.Warn("tool reported failure", "tool", name, "call_id", callID, "error", res.Err)
		return res, nil
	}
	metrics.ToolCallTotal.WithLabelValues(name, "ok").Inc()
	r.store(ctx, key, res)
	return res, nil
}

func cacheKey(name string, args map[string]any) string {
	raw, _ := json.Marshal(args)
	return "tool:" + name + ":" + utils.ShortHash(string(raw))
}

func (r *Registry) cached(ctx context.Context, key string) (tool.ToolResult, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return tool.ToolResult{}, false
	}
	var res tool.ToolResult
	if err := r.cache.Get(ctx, key, &res); err != nil {
		return tool.ToolResult{}, false
	}
	return res, true
}

func (r *Registry) store(ctx context.Context, key string, res tool.ToolResult) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	if err := r.cache.Set(ctx, key, res, r.cacheTTL); err != nil {
		r.logger.Debug("tool cache set failed", "key", key, "error", err)
	}
}
