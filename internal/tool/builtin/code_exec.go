package builtin

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
)

// CodeExecToolName 代码执行工具名
const CodeExecToolName = "code_execution_tool"

// CodeExecTool 把代码提交给外部沙箱执行服务（POST /run_code），原样返回其 JSON 结果
type CodeExecTool struct {
	client *resty.Client
	apiKey string
}

// NewCodeExecTool 创建代码执行工具
func NewCodeExecTool(ep Endpoint) *CodeExecTool {
	return &CodeExecTool{client: newRestClient(ep.base("http://localhost:8080"), ep.Timeout), apiKey: ep.APIKey}
}

func (t *CodeExecTool) Name() string { return CodeExecToolName }

func (t *CodeExecTool) Description() string {
	return "Execute Python code in a sandbox and return stdout, stderr and the result."
}

func (t *CodeExecTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"code": {Type: "string", Description: "the code to execute"},
		},
		Required: []string{"code"},
	}
}

// Execute 实现 tool.Tool
func (t *CodeExecTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	code := stringArg(input, "code")
	if code == "" {
		return tool.ToolResult{Err: "code is required"}, nil
	}
	r := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"code": code, "language": "python"})
	if t.apiKey != "" {
		r.SetAuthToken(t.apiKey)
	}
	resp, err := r.Post("/run_code")
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	return tool.ToolResult{Content: resp.String()}, nil
}
