// Package trace 把一次研究运行的步骤历史汇总为不可变的 Result 记录。
package trace

import (
	"time"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/agent/toolcall"
)

// FinalAnswerTool 不计入工具调用统计的工具名
const FinalAnswerTool = "final_answer"

// TokenUsage 单步或累计 token 用量
type TokenUsage struct {
	Input  int `json:"input_tokens"`
	Output int `json:"output_tokens"`
	Total  int `json:"total_tokens"`
}

// Add 累加
func (u *TokenUsage) Add(o TokenUsage) {
	u.Input += o.Input
	u.Output += o.Output
	u.Total += o.Total
}

// Message 对话轨迹中的一条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Observation 单个工具调用的输出
type Observation struct {
	CallID     string   `json:"call_id"`
	Tool       string   `json:"tool"`
	Content    string   `json:"content"`
	Error      string   `json:"error,omitempty"`
	SnippetIDs []string `json:"snippet_ids,omitempty"`
	URLs       []string `json:"urls,omitempty"`
}

// Step 一轮 模型调用 + 工具执行
type Step struct {
	Number       int             `json:"step_number"`
	ToolCalls    []toolcall.Call `json:"tool_calls"`
	Observations []Observation   `json:"observations"`
	Error        string          `json:"error,omitempty"`
	Notice       string          `json:"notice,omitempty"` // 格式提醒等非工具失败
	Usage        *TokenUsage     `json:"token_usage,omitempty"`
}

// StepUsage 每步 token 用量
type StepUsage struct {
	Step  int        `json:"step"`
	Usage TokenUsage `json:"usage"`
}

// Result 一次研究运行的最终记录，构建后不再修改
type Result struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Status   string `json:"status"`

	Trace []Message `json:"trace"`
	Steps []Step    `json:"steps"`

	TotalToolCalls       int      `json:"total_tool_calls"`
	FailedToolCalls      int      `json:"total_failed_tool_calls"`
	FailedToolCallErrors []string `json:"failed_tool_call_errors"`
	ToolCalls            []string `json:"tool_calls"`

	StepUsage   []StepUsage `json:"step_token_usage"`
	TotalTokens TokenUsage  `json:"total_token_usage"`

	Citations             []citation.Usage `json:"citations"`
	HallucinatedCitations int              `json:"hallucinated_citations"`

	SearchedLinks []string `json:"searched_links"`
	BrowsedLinks  []string `json:"browsed_links"`

	// 批量/重试场景：数据集标识、标准答案与评审结论
	ExampleID string `json:"example_id,omitempty"`
	Gold      string `json:"gold,omitempty"`
	Correct   *bool  `json:"correct,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
