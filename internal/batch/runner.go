package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/grader"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
	"github.com/AthenaAgent/athena-dr/pkg/log"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
	"github.com/AthenaAgent/athena-dr/pkg/tracing"
)

// DefaultConcurrency 默认并发数
const DefaultConcurrency = 8

// Summary 一次批量运行的统计
type Summary struct {
	Total    int           `json:"total"`
	Skipped  int           `json:"skipped"`
	Saved    int           `json:"saved"`
	Failed   int           `json:"failed"`
	Correct  int           `json:"correct"`
	Duration time.Duration `json:"duration_ns"`
}

// Runner 批量执行器；每个问题通过 factory 获得新的 Agent
type Runner struct {
	factory     grader.AgentFactory
	retrier     *grader.Retrier
	store       result.Store
	concurrency int
	maxExamples int
	logger      *log.Logger
}

// Option 可选配置
type Option func(*Runner)

// WithConcurrency 同时运行的问题数
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithRetrier 有标准答案的问题走拒绝采样
func WithRetrier(rt *grader.Retrier) Option {
	return func(r *Runner) { r.retrier = rt }
}

// WithMaxExamples 只处理前 n 个问题
func WithMaxExamples(n int) Option {
	return func(r *Runner) { r.maxExamples = n }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner 创建批量执行器
func NewRunner(factory grader.AgentFactory, store result.Store, opts ...Option) *Runner {
	r := &Runner{
		factory:     factory,
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.logger == nil {
		r.logger = log.Discard()
	}
	return r
}

// Run 处理 items：跳过存储中已有的问题；单个问题失败或 panic 只记录，不影响其他问题。
// 未写入结果的问题在下次运行时会被重新处理。
func (r *Runner) Run(ctx context.Context, items []Item) (Summary, error) {
	started := time.Now()
	if r.maxExamples > 0 && len(items) > r.maxExamples {
		items = items[:r.maxExamples]
	}
	done, err := r.store.Questions(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load finished questions: %w", err)
	}

	var pending []Item
	for _, it := range items {
		if _, ok := done[it.Question]; ok {
			continue
		}
		pending = append(pending, it)
	}
	sum := Summary{Total: len(items), Skipped: len(items) - len(pending)}
	r.logger.Info("batch start", "total", sum.Total, "skipped", sum.Skipped, "concurrency", r.concurrency)

	var saved, failed, correct int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, it := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			metrics.BatchInFlight.Inc()
			defer metrics.BatchInFlight.Dec()
			res, err := r.process(gctx, it)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				r.logger.Error("batch item failed", "id", it.ID, "error", err)
				return nil
			}
			if err := r.store.Save(gctx, res); err != nil {
				atomic.AddInt64(&failed, 1)
				r.logger.Error("save result failed", "id", it.ID, "error", err)
				return nil
			}
			atomic.AddInt64(&saved, 1)
			if res.Correct != nil && *res.Correct {
				atomic.AddInt64(&correct, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Saved, sum.Failed, sum.Correct = int(saved), int(failed), int(correct)
	sum.Duration = time.Since(started)
	r.logger.Info("batch done", "saved", sum.Saved, "failed", sum.Failed, "correct", sum.Correct, "duration", sum.Duration)
	return sum, ctx.Err()
}

// process 运行单个问题；预算耗尽的部分结果照常保存
func (r *Runner) process(ctx context.Context, it Item) (res *trace.Result, err error) {
	ctx, span := tracing.StartItemSpan(ctx, it.ID)
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("batch item panic", "id", it.ID, "panic", p, "stack", string(debug.Stack()))
			res, err = nil, errors.Fatal(fmt.Errorf("panic: %v", p))
		}
		tracing.RecordError(span, err)
	}()

	if r.retrier != nil && it.Answer != "" {
		out, ok, rerr := r.retrier.Run(ctx, it.Question, it.Answer)
		if out == nil {
			return nil, rerr
		}
		out.Correct = &ok
		res = out
	} else {
		out, rerr := r.factory().Run(ctx, it.Question)
		if out == nil {
			return nil, rerr
		}
		if rerr != nil {
			r.logger.Warn("batch item ended early", "id", it.ID, "error", rerr)
		}
		res = out
	}
	res.ExampleID = it.ID
	res.Gold = it.Answer
	return res, nil
}
