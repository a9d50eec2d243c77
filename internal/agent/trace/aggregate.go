package trace

import (
	"time"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// LinkClassifier 按工具名判断其输出链接属于搜索结果还是已浏览页面
type LinkClassifier func(toolName string) tool.LinkKind

// Input 汇总所需的运行数据
type Input struct {
	ID        string
	Question  string
	Answer    string
	Status    string
	Messages  []Message
	Steps     []Step
	Citations []citation.Usage
	// Fallback 预算耗尽后补充作答调用的用量，不对应任何步骤
	Fallback  *TokenUsage
	Links     LinkClassifier
	StartedAt time.Time
}

// Aggregate 由步骤历史构建 Result：
// 工具调用计数排除 final_answer；每个带错误的步骤计一次失败（Notice 不计）；
// token 累加上报了用量的步骤以及补充作答调用，后者在 StepUsage 中编号为最后一步之后。
func Aggregate(in Input) *Result {
	r := &Result{
		ID:                    in.ID,
		Question:              in.Question,
		Answer:                in.Answer,
		Status:                in.Status,
		Trace:                 append([]Message(nil), in.Messages...),
		Steps:                 append([]Step(nil), in.Steps...),
		FailedToolCallErrors:  []string{},
		ToolCalls:             []string{},
		StepUsage:             []StepUsage{},
		Citations:             append([]citation.Usage(nil), in.Citations...),
		HallucinatedCitations: citation.CountHallucinated(in.Citations),
		SearchedLinks:         []string{},
		BrowsedLinks:          []string{},
		StartedAt:             in.StartedAt,
	}
	if !in.StartedAt.IsZero() {
		r.Duration = time.Since(in.StartedAt)
	}

	for _, s := range in.Steps {
		for _, c := range s.ToolCalls {
			if c.Name == FinalAnswerTool {
				continue
			}
			r.ToolCalls = append(r.ToolCalls, c.Name)
		}
		if s.Error != "" {
			r.FailedToolCalls++
			r.FailedToolCallErrors = append(r.FailedToolCallErrors, s.Error)
		}
		if s.Usage != nil {
			r.StepUsage = append(r.StepUsage, StepUsage{Step: s.Number, Usage: *s.Usage})
			r.TotalTokens.Add(*s.Usage)
		}
		if in.Links == nil {
			continue
		}
		for _, o := range s.Observations {
			if o.Error != "" {
				continue
			}
			switch in.Links(o.Tool) {
			case tool.LinkSearch:
				r.SearchedLinks = utils.AppendUnique(r.SearchedLinks, o.URLs...)
			case tool.LinkBrowse:
				r.BrowsedLinks = utils.AppendUnique(r.BrowsedLinks, o.URLs...)
			}
		}
	}
	if in.Fallback != nil {
		r.StepUsage = append(r.StepUsage, StepUsage{Step: len(in.Steps) + 1, Usage: *in.Fallback})
		r.TotalTokens.Add(*in.Fallback)
	}
	r.TotalToolCalls = len(r.ToolCalls)
	return r
}
