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

// Package research 实现深度研究 Agent 的单问题循环：
// 模型调用 -> 工具调用抽取 -> 工具执行 -> 观察写回，直到给出答案或预算耗尽。
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/agent/prompt"
	"github.com/AthenaAgent/athena-dr/internal/agent/toolcall"
	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
	"github.com/AthenaAgent/athena-dr/pkg/log"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
	"github.com/AthenaAgent/athena-dr/pkg/tracing"
)

// 答案判定方式
const (
	AnswerModeTag  = "tag"
	AnswerModeTool = "tool"
	AnswerModeBoth = "both"
)

const (
	defaultMaxOutputTokens = 10000
	defaultMaxSteps        = 1000
)

// Tools Agent 所需的工具能力（tool/registry.Registry 实现）
type Tools interface {
	Dispatch(ctx context.Context, name, callID string, args map[string]any) (tool.ToolResult, error)
	SchemasForLLM() ([]byte, error)
	Specs() ([]llm.ToolSpec, error)
	LinkKind(name string) tool.LinkKind
}

// Agent 单个研究问题的执行者；同一实例不可并发 Run，批量场景每个问题使用新实例
type Agent struct {
	name      string
	client    llm.Client
	tools     Tools
	extractor *toolcall.Extractor
	prefixes  *citation.Registry
	logger    *log.Logger
	monitor   *Monitor

	maxOutputTokens int
	maxSteps        int
	answerMode      string
	answerType      prompt.AnswerType
	extractBoxed    bool
	answerFallback  bool
	nativeTools     bool
	genOpts         llm.GenerateOptions
}

// AgentOption 可选配置
type AgentOption func(*Agent)

// WithName 设置 Agent 名称（用于日志、指标与追踪）
func WithName(name string) AgentOption {
	return func(a *Agent) { a.name = name }
}

// WithMaxOutputTokens 累计输出 token 上限
func WithMaxOutputTokens(n int) AgentOption {
	return func(a *Agent) { a.maxOutputTokens = n }
}

// WithMaxSteps 设置单次 Run 最大步数
func WithMaxSteps(n int) AgentOption {
	return func(a *Agent) { a.maxSteps = n }
}

// WithAnswerMode tag | tool | both
func WithAnswerMode(mode string) AgentOption {
	return func(a *Agent) { a.answerMode = mode }
}

// WithAnswerType 问题包装模板
func WithAnswerType(t prompt.AnswerType) AgentOption {
	return func(a *Agent) { a.answerType = t }
}

// WithExtractBoxed 最终答案中提取 \boxed{}
func WithExtractBoxed(on bool) AgentOption {
	return func(a *Agent) { a.extractBoxed = on }
}

// WithAnswerFallback 预算耗尽且无答案时追加一次作答调用
func WithAnswerFallback(on bool) AgentOption {
	return func(a *Agent) { a.answerFallback = on }
}

// WithNativeTools 通过原生 function calling 下发工具 Schema
func WithNativeTools(on bool) AgentOption {
	return func(a *Agent) { a.nativeTools = on }
}

// WithGenerateOptions 模型调用参数
func WithGenerateOptions(opts llm.GenerateOptions) AgentOption {
	return func(a *Agent) { a.genOpts = opts }
}

// WithExtractor 替换工具调用抽取器（如自定义 Event 别名表）
func WithExtractor(e *toolcall.Extractor) AgentOption {
	return func(a *Agent) { a.extractor = e }
}

// WithPrefixRegistry 片段 ID 前缀表，应与工具注册表共享同一实例
func WithPrefixRegistry(r *citation.Registry) AgentOption {
	return func(a *Agent) { a.prefixes = r }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// New 创建 Agent
func New(client llm.Client, tools Tools, opts ...AgentOption) *Agent {
	a := &Agent{
		name:            "research",
		client:          client,
		tools:           tools,
		monitor:         &Monitor{},
		maxOutputTokens: defaultMaxOutputTokens,
		maxSteps:        defaultMaxSteps,
		answerMode:      AnswerModeBoth,
		answerType:      prompt.AnswerShort,
	}
	for _, o := range opts {
		o(a)
	}
	if a.maxOutputTokens <= 0 {
		a.maxOutputTokens = defaultMaxOutputTokens
	}
	if a.maxSteps <= 0 {
		a.maxSteps = defaultMaxSteps
	}
	switch a.answerMode {
	case AnswerModeTag, AnswerModeTool, AnswerModeBoth:
	default:
		a.answerMode = AnswerModeBoth
	}
	if a.extractor == nil {
		a.extractor = toolcall.NewExtractor()
	}
	if a.prefixes == nil {
		a.prefixes = citation.NewRegistry()
	}
	if a.logger == nil {
		a.logger = log.Discard()
	}
	return a
}

// Monitor 当前实例的 token 计数器
func (a *Agent) Monitor() *Monitor { return a.monitor }

// run 单次运行的可变状态
type run struct {
	id         string
	question   string
	status     Status
	messages   []llm.Message
	transcript []trace.Message
	steps      []trace.Step
	prov       *citation.Provenance
	final      string
	fallback   *trace.TokenUsage
}

func (r *run) say(m llm.Message) {
	r.messages = append(r.messages, m)
	r.transcript = append(r.transcript, trace.Message{Role: m.Role, Content: m.Content})
}

// Run 回答一个问题。
// 正常结束返回 (Result, nil)；预算耗尽返回部分 Result 与 ErrTokenLimitExceeded/ErrStepLimitExceeded；
// 模型端点出错返回 (nil, ErrFatal)。
func (a *Agent) Run(ctx context.Context, question string) (*trace.Result, error) {
	if a.client == nil || a.tools == nil {
		return nil, errors.Fatal(fmt.Errorf("agent not configured: missing llm client or tools"))
	}
	started := time.Now()
	a.monitor.Reset()
	r := &run{
		id:       uuid.New().String(),
		question: question,
		status:   StatusRunning,
		prov:     citation.NewProvenance(),
	}
	ctx = tool.WithQuestion(ctx, question)
	ctx, span := tracing.StartQuerySpan(ctx, r.id, a.name)
	defer span.End()
	logger := a.logger.With("run_id", r.id, "agent", a.name)

	opts, err := a.generateOptions()
	if err != nil {
		return nil, errors.Fatal(err)
	}
	schemas, err := a.tools.SchemasForLLM()
	if err != nil {
		return nil, errors.Fatal(fmt.Errorf("tool schemas: %w", err))
	}
	r.say(llm.Message{Role: "system", Content: prompt.System(schemas, a.answerMode)})
	r.say(llm.Message{Role: "user", Content: prompt.Wrap(question, a.answerType)})

	var budgetErr error
	for !r.status.Terminal() {
		if out := a.monitor.OutputTokens(); out >= a.maxOutputTokens {
			logger.Info("max output tokens reached", "output_tokens", out, "limit", a.maxOutputTokens)
			r.status, budgetErr = StatusTokenLimitExceeded, errors.ErrTokenLimitExceeded
			break
		}
		if len(r.steps) >= a.maxSteps {
			logger.Info("max steps reached", "steps", len(r.steps))
			r.status, budgetErr = StatusStepLimitExceeded, errors.ErrStepLimitExceeded
			break
		}
		if err := a.step(ctx, r, opts, logger); err != nil {
			r.status = StatusFatalError
			tracing.RecordError(span, err)
			metrics.QueryTotal.WithLabelValues(string(r.status)).Inc()
			logger.Error("research run failed", "step", len(r.steps)+1, "error", err)
			return nil, errors.Fatal(err)
		}
	}

	if r.status != StatusAnswered && a.answerFallback {
		a.fallback(ctx, r, opts, logger)
	}

	result := a.finish(r, started)
	metrics.QueryDuration.WithLabelValues(a.name).Observe(time.Since(started).Seconds())
	metrics.QueryTotal.WithLabelValues(string(r.status)).Inc()
	metrics.AgentSteps.Observe(float64(len(r.steps)))
	metrics.HallucinatedCitations.Add(float64(result.HallucinatedCitations))
	logger.Info("research run finished",
		"status", r.status,
		"steps", len(r.steps),
		"tool_calls", result.TotalToolCalls,
		"failed_tool_calls", result.FailedToolCalls,
		"model_calls", a.monitor.Calls(),
		"output_tokens", a.monitor.Totals().Output,
		"total_tokens", a.monitor.Totals().Total,
	)
	if budgetErr != nil {
		return result, errors.Wrapf(budgetErr, "after %d steps", len(r.steps))
	}
	return result, nil
}

func (a *Agent) generateOptions() (llm.GenerateOptions, error) {
	opts := a.genOpts
	if a.nativeTools {
		specs, err := a.tools.Specs()
		if err != nil {
			return opts, fmt.Errorf("tool specs: %w", err)
		}
		opts.Tools = specs
	}
	return opts, nil
}

// step RUNNING -> (TOOL_EXECUTING) -> RUNNING | ANSWERED；返回 error 表示模型端点失败
func (a *Agent) step(ctx context.Context, r *run, opts llm.GenerateOptions, logger *log.Logger) error {
	num := len(r.steps) + 1
	ctx, span := tracing.StartStepSpan(ctx, num)
	defer span.End()

	resp, err := a.client.Complete(ctx, r.messages, opts)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("model call at step %d: %w", num, err)
	}
	step := trace.Step{Number: num, Usage: a.monitor.Record(resp.Usage)}

	content := resp.Content
	if resp.Reasoning != "" {
		content = "<thinking>" + resp.Reasoning + "</thinking>\n\n" + content
	}

	var (
		cleaned string
		calls   []toolcall.Call
	)
	if len(resp.ToolCalls) > 0 {
		cleaned = content
		for _, tc := range resp.ToolCalls {
			calls = append(calls, toolcall.FromNative(tc.ID, tc.Name, tc.Arguments))
		}
	} else {
		cleaned, calls = a.extractor.Extract(content)
	}
	r.say(llm.Message{Role: "assistant", Content: content, ToolCalls: resp.ToolCalls})

	if answer, ok := a.answerFrom(cleaned, calls); ok {
		for _, c := range calls {
			if c.Name == trace.FinalAnswerTool {
				step.ToolCalls = []toolcall.Call{c}
				break
			}
		}
		r.final = answer
		r.status = StatusAnswered
		r.steps = append(r.steps, step)
		return nil
	}

	if len(calls) == 0 {
		// tool 模式下没有 final_answer 调用：提醒后继续，不计入失败的工具调用
		step.Notice = "no tool call or final answer in model output"
		r.say(llm.Message{Role: "user", Content: "No tool call was found. Call a tool, or call final_answer with your answer."})
		r.steps = append(r.steps, step)
		return nil
	}

	r.status = StatusToolExecuting
	step.ToolCalls = calls
	var failures []string
	for _, c := range calls {
		logger.Debug("dispatch tool call", "step", num, "call_id", c.ID, "tool", c.Name, "arguments", c.ArgumentsJSON())
		obs := a.execute(ctx, r, c, num)
		if obs.Error != "" {
			failures = append(failures, c.Name+": "+obs.Error)
		}
		step.Observations = append(step.Observations, obs)
	}
	if len(failures) > 0 {
		step.Error = strings.Join(failures, "; ")
	}
	a.observe(r, step)
	r.steps = append(r.steps, step)
	r.status = StatusRunning
	logger.Debug("step done", "step", num, "tool_calls", len(calls), "error", step.Error)
	return nil
}

// answerFrom 判断本轮是否给出最终答案；<answer> 只在推理轨迹之外生效。
// 含 final_answer 的轮次总在这里结束，同轮其它调用不再执行。
func (a *Agent) answerFrom(cleaned string, calls []toolcall.Call) (string, bool) {
	if a.answerMode != AnswerModeTag {
		for _, c := range calls {
			if c.Name == trace.FinalAnswerTool {
				switch v := c.Arguments["answer"].(type) {
				case string:
					return v, true
				case nil:
					return "", true
				default:
					return fmt.Sprint(v), true
				}
			}
		}
	}
	if a.answerMode != AnswerModeTool && HasAnswer(StripThinking(cleaned)) {
		return cleaned, true
	}
	if a.answerMode != AnswerModeTool && len(calls) == 0 {
		return cleaned, true
	}
	return "", false
}

// execute 分发单个调用；失败只记录在观察中，不中断循环
func (a *Agent) execute(ctx context.Context, r *run, c toolcall.Call, step int) trace.Observation {
	obs := trace.Observation{CallID: c.ID, Tool: c.Name}
	res, err := a.tools.Dispatch(ctx, c.Name, c.ID, c.Arguments)
	switch {
	case err != nil:
		obs.Error = err.Error()
		obs.Content = "Error: " + err.Error()
	case res.Failed():
		obs.Error = res.Err
		obs.Content = res.Content
		if obs.Content == "" {
			obs.Content = "Error: " + res.Err
		}
	default:
		obs.Content = res.Content
		found := a.prefixes.ExtractObservation(res.Content)
		obs.SnippetIDs, obs.URLs = found.SnippetIDs, found.URLs
		r.prov.Record(found.SnippetIDs, c.Name, step)
	}
	return obs
}

// observe 把工具输出写回对话：原生调用逐条作为 tool 消息，文本协议合并为一条 user 消息
func (a *Agent) observe(r *run, step trace.Step) {
	if len(step.ToolCalls) > 0 && step.ToolCalls[0].Format == toolcall.FormatNative {
		for _, o := range step.Observations {
			r.say(llm.Message{Role: "tool", ToolCallID: o.CallID, Content: o.Content})
		}
		return
	}
	var b strings.Builder
	for i, o := range step.Observations {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Observation [%s] %s:\n%s", o.CallID, o.Tool, o.Content)
	}
	r.say(llm.Message{Role: "user", Content: b.String()})
}

// fallback 预算耗尽后以 "<answer>" 为前缀请求一次作答；失败只记录日志
func (a *Agent) fallback(ctx context.Context, r *run, opts llm.GenerateOptions, logger *log.Logger) {
	opts.Tools = nil
	msgs := append(append([]llm.Message(nil), r.messages...),
		llm.Message{Role: "user", Content: prompt.AnswerFallback},
		llm.Message{Role: "assistant", Content: prompt.AnswerPrefix},
	)
	resp, err := a.client.Complete(ctx, msgs, opts)
	if err != nil {
		logger.Warn("answer fallback failed", "error", err)
		return
	}
	r.fallback = a.monitor.Record(resp.Usage)
	text := resp.Content
	if !strings.Contains(text, prompt.AnswerPrefix) {
		text = prompt.AnswerPrefix + text
	}
	r.say(llm.Message{Role: "user", Content: prompt.AnswerFallback})
	r.say(llm.Message{Role: "assistant", Content: text})
	r.final = text
}

func (a *Agent) finish(r *run, started time.Time) *trace.Result {
	cited := citation.ExtractCited(StripThinking(r.final))
	return trace.Aggregate(trace.Input{
		ID:        r.id,
		Question:  r.question,
		Answer:    PostProcess(r.final, a.extractBoxed),
		Status:    string(r.status),
		Messages:  r.transcript,
		Steps:     r.steps,
		Citations: r.prov.Resolve(cited),
		Fallback:  r.fallback,
		Links:     a.tools.LinkKind,
		StartedAt: started,
	})
}
