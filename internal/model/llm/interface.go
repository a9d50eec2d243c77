package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Client LLM 客户端接口
type Client interface {
	// Complete 发送对话并返回完整响应（文本、推理过程、原生工具调用、token 用量）
	Complete(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error)
	// ChatWithContext 使用上下文聊天，仅返回文本
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
	TopP        float64    `json:"top_p"`
	Stop        []string   `json:"stop"`
	Tools       []ToolSpec `json:"tools,omitempty"` // 为空时不下发原生工具，由文本协议承载工具调用
	Reasoning   bool       `json:"reasoning"`       // 请求返回推理轨迹（OpenAI 兼容端点的 reasoning 扩展）
}

// Message 聊天消息
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolSpec 下发给模型的工具描述；Parameters 为 JSON Schema
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall 模型返回的原生工具调用；Arguments 为 JSON 字符串
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage 单次调用的 token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response 单次模型调用结果
type Response struct {
	Content      string     `json:"content"`
	Reasoning    string     `json:"reasoning,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 vLLM/Qwen/OpenRouter），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "openai", "qwen", "vllm", "openrouter":
		return NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
	case "claude":
		return NewClaudeClient(model, apiKey, baseURL)
	case "gemini":
		return NewGeminiClient(model, apiKey, baseURL)
	case "eino":
		return NewEinoClient(context.Background(), model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

func getEnv(key string) string {
	return os.Getenv(key)
}

func usageFrom(input, output, total int) *Usage {
	if input == 0 && output == 0 && total == 0 {
		return nil
	}
	if total == 0 {
		total = input + output
	}
	return &Usage{InputTokens: input, OutputTokens: output, TotalTokens: total}
}
