package grader

import (
	"context"
	stderrors "errors"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
	"github.com/AthenaAgent/athena-dr/pkg/log"
)

// DefaultMaxAttempts 单个问题的最大尝试次数
const DefaultMaxAttempts = 5

// Runner 单次研究运行（research.Agent 实现）
type Runner interface {
	Run(ctx context.Context, question string) (*trace.Result, error)
}

// AgentFactory 每次尝试都创建新 Runner，token 计数不跨尝试共享
type AgentFactory func() Runner

// Retrier 拒绝采样：重复运行直到答案通过 Checker 或次数用尽
type Retrier struct {
	factory     AgentFactory
	checker     *Checker
	maxAttempts int
	logger      *log.Logger
}

// NewRetrier maxAttempts <= 0 时取 DefaultMaxAttempts
func NewRetrier(factory AgentFactory, checker *Checker, maxAttempts int, logger *log.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Retrier{factory: factory, checker: checker, maxAttempts: maxAttempts, logger: logger}
}

// Run 返回首个被接受的结果；均未通过时返回最后一个有结果的尝试且 accepted=false。
// 预算耗尽的部分结果同样参与评审；只有所有尝试都没有结果时才返回最后的错误。
func (r *Retrier) Run(ctx context.Context, question, target string) (*trace.Result, bool, error) {
	var (
		last    *trace.Result
		lastErr error
	)
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, false, err
		}
		res, err := r.factory().Run(ctx, question)
		if err != nil {
			lastErr = err
			r.logger.Warn("research attempt failed", "attempt", attempt, "error", err)
			if res == nil {
				if stderrors.Is(err, context.Canceled) {
					return last, false, err
				}
				continue
			}
		}
		res.Attempts = attempt
		last = res
		if res.Answer == "" {
			continue
		}
		ok, gerr := r.checker.Check(ctx, question, target, res.Answer)
		if gerr != nil {
			r.logger.Warn("grading failed", "attempt", attempt, "error", gerr)
			continue
		}
		if ok {
			r.logger.Info("answer accepted", "attempt", attempt, "run_id", res.ID)
			return res, true, nil
		}
		r.logger.Info("answer rejected", "attempt", attempt, "run_id", res.ID)
	}
	if last == nil && lastErr != nil {
		return nil, false, errors.Wrapf(lastErr, "all %d attempts failed", r.maxAttempts)
	}
	return last, false, nil
}
