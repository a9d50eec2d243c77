package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient 基于 eino ToolCallingChatModel 的客户端，原生工具调用走 WithTools 绑定
type EinoClient struct {
	model     string
	chatModel model.ToolCallingChatModel
}

// NewEinoClient 使用 eino-ext OpenAI ChatModel 创建客户端
func NewEinoClient(ctx context.Context, modelName, apiKey, baseURL string) (*EinoClient, error) {
	cfg := &openai.ChatModelConfig{
		Model:  modelName,
		APIKey: apiKey,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return NewEinoClientWithModel(modelName, chatModel), nil
}

// NewEinoClientWithModel 包装已有的 ToolCallingChatModel
func NewEinoClientWithModel(modelName string, chatModel model.ToolCallingChatModel) *EinoClient {
	return &EinoClient{model: modelName, chatModel: chatModel}
}

// Complete 实现 Client.Complete
func (c *EinoClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error) {
	cm := c.chatModel
	if len(options.Tools) > 0 {
		infos, err := ToolInfos(options.Tools)
		if err != nil {
			return nil, err
		}
		bound, err := cm.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("绑定工具失败: %w", err)
		}
		cm = bound
	}

	opts := []model.Option{model.WithTemperature(float32(options.Temperature))}
	if options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(options.MaxTokens))
	}
	if options.TopP > 0 {
		opts = append(opts, model.WithTopP(float32(options.TopP)))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, model.WithStop(options.Stop))
	}

	out, err := cm.Generate(ctx, toSchemaMessages(messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("eino ChatModel Generate failed: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("eino ChatModel 没有返回结果")
	}

	resp := &Response{Content: out.Content, Reasoning: out.ReasoningContent}
	for _, tc := range out.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	if meta := out.ResponseMeta; meta != nil {
		resp.FinishReason = meta.FinishReason
		if meta.Usage != nil {
			resp.Usage = usageFrom(meta.Usage.PromptTokens, meta.Usage.CompletionTokens, meta.Usage.TotalTokens)
		}
	}
	return resp, nil
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *EinoClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	resp, err := c.Complete(ctx, messages, options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return "eino" }

func toSchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		msg := &schema.Message{Role: schemaRole(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, msg)
	}
	return out
}

func schemaRole(role string) schema.RoleType {
	switch role {
	case "user":
		return schema.User
	case "assistant":
		return schema.Assistant
	case "system":
		return schema.System
	case "tool":
		return schema.Tool
	default:
		return schema.RoleType(role)
	}
}

// jsonSchemaProp 工具参数 JSON Schema 中本包关心的字段
type jsonSchemaProp struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description"`
	Enum        []string                  `json:"enum"`
	Items       *jsonSchemaProp           `json:"items"`
	Properties  map[string]jsonSchemaProp `json:"properties"`
	Required    []string                  `json:"required"`
}

// ToolInfos 将 JSON Schema 形式的 ToolSpec 转为 eino ToolInfo
func ToolInfos(specs []ToolSpec) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		var root jsonSchemaProp
		if len(s.Parameters) > 0 {
			if err := json.Unmarshal(s.Parameters, &root); err != nil {
				return nil, fmt.Errorf("工具 %s 参数 schema 无效: %w", s.Name, err)
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        s.Name,
			Desc:        s.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(paramInfos(root)),
		})
	}
	return infos, nil
}

func paramInfos(obj jsonSchemaProp) map[string]*schema.ParameterInfo {
	required := make(map[string]bool, len(obj.Required))
	for _, r := range obj.Required {
		required[r] = true
	}
	out := make(map[string]*schema.ParameterInfo, len(obj.Properties))
	for name, p := range obj.Properties {
		info := paramInfo(p)
		info.Required = required[name]
		out[name] = info
	}
	return out
}

func paramInfo(p jsonSchemaProp) *schema.ParameterInfo {
	info := &schema.ParameterInfo{Type: dataType(p.Type), Desc: p.Description, Enum: p.Enum}
	if p.Items != nil {
		info.ElemInfo = paramInfo(*p.Items)
	}
	if len(p.Properties) > 0 {
		info.SubParams = paramInfos(p)
	}
	return info
}

func dataType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
