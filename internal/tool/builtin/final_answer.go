package builtin

import (
	"context"

	"github.com/AthenaAgent/athena-dr/internal/tool"
)

// FinalAnswerToolName 以工具调用形式提交最终答案（answer_mode=tool|both）
const FinalAnswerToolName = "final_answer"

// FinalAnswerTool 仅用于向模型声明 final_answer；Agent 循环截获该调用而不分发
type FinalAnswerTool struct{}

func (FinalAnswerTool) Name() string { return FinalAnswerToolName }

func (FinalAnswerTool) Description() string {
	return "Provide the final answer to the question. Cite evidence with <cite id=\"ID\">claim</cite>."
}

func (FinalAnswerTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"answer": {Type: "string", Description: "The final answer to the problem"},
		},
		Required: []string{"answer"},
	}
}

// Execute 原样返回答案
func (FinalAnswerTool) Execute(_ context.Context, input map[string]any) (tool.ToolResult, error) {
	return tool.ToolResult{Content: stringArg(input, "answer")}, nil
}
