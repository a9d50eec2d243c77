package app

import (
	"context"

	"github.com/AthenaAgent/athena-dr/internal/agent/prompt"
	"github.com/AthenaAgent/athena-dr/internal/agent/research"
	"github.com/AthenaAgent/athena-dr/internal/agent/toolcall"
	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	apihttp "github.com/AthenaAgent/athena-dr/internal/api/http"
	"github.com/AthenaAgent/athena-dr/internal/grader"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
)

// NewAgent 按 agent 配置创建新的研究 Agent；answerType 为空时取配置值
func (b *Bootstrap) NewAgent(answerType string) *research.Agent {
	ac := b.Config.Agent
	if answerType == "" {
		answerType = ac.AnswerType
	}
	return research.New(b.LLM, b.Tools,
		research.WithName(ac.Name),
		research.WithMaxOutputTokens(ac.MaxOutputTokens),
		research.WithMaxSteps(ac.MaxSteps),
		research.WithAnswerMode(ac.AnswerMode),
		research.WithAnswerType(prompt.ParseAnswerType(answerType)),
		research.WithExtractBoxed(ac.ExtractBoxed),
		research.WithAnswerFallback(ac.AnswerFallback),
		research.WithNativeTools(ac.NativeTools),
		research.WithGenerateOptions(llm.GenerateOptions{
			Temperature: ac.Temperature,
			MaxTokens:   ac.MaxTokens,
			Reasoning:   ac.Reasoning,
		}),
		research.WithExtractor(toolcall.NewExtractor(toolcall.WithAliases(ac.EventAliases))),
		research.WithPrefixRegistry(b.Prefixes),
		research.WithLogger(b.Logger.With("component", "agent")),
	)
}

// AgentFactory 每次调用返回新的 Agent，token 计数互不共享
func (b *Bootstrap) AgentFactory(answerType string) grader.AgentFactory {
	return func() grader.Runner { return b.NewAgent(answerType) }
}

// NewRetrier 拒绝采样重试器
func (b *Bootstrap) NewRetrier(answerType string) *grader.Retrier {
	return grader.NewRetrier(b.AgentFactory(answerType), b.Checker, b.Config.Grader.MaxAttempts, b.Logger.With("component", "retrier"))
}

// Research 实现 HTTP 层的 ResearchService：带标准答案时走重试，否则单次运行
func (b *Bootstrap) Research(ctx context.Context, req apihttp.ResearchRequest) (*trace.Result, error) {
	if req.Gold != "" {
		res, ok, err := b.NewRetrier(req.AnswerType).Run(ctx, req.Question, req.Gold)
		if res != nil {
			res.Gold = req.Gold
			res.Correct = &ok
		}
		return res, err
	}
	return b.NewAgent(req.AnswerType).Run(ctx, req.Question)
}
