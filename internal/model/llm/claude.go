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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClaudeClient Anthropic Messages API 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端；baseURL 为空时用默认或 ANTHROPIC_BASE_URL
func NewClaudeClient(model, apiKey, baseURL string) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
		if envURL := getEnv("ANTHROPIC_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(5 * time.Minute)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

type claudeResponse struct {
	Content []struct {
		Type     string          `json:"type"`
		Text     string          `json:"text"`
		Thinking string          `json:"thinking"`
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Input    json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete 调用 /messages；system 消息合并到顶层 system 字段，tool 结果以 tool_result 块回传
func (c *ClaudeClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error) {
	var (
		system         []string
		claudeMessages []map[string]interface{}
	)
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "tool":
			claudeMessages = append(claudeMessages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{{
					"type":        "tool_result",
					"tool_use_id": msg.ToolCallID,
					"content":     msg.Content,
				}},
			})
		default:
			if len(msg.ToolCalls) == 0 {
				claudeMessages = append(claudeMessages, map[string]interface{}{"role": msg.Role, "content": msg.Content})
				continue
			}
			blocks := []map[string]interface{}{}
			if msg.Content != "" {
				blocks = append(blocks, map[string]interface{}{"type": "text", "text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, map[string]interface{}{"type": "tool_use", "id": tc.ID, "name": tc.Name, "input": input})
			}
			claudeMessages = append(claudeMessages, map[string]interface{}{"role": msg.Role, "content": blocks})
		}
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	request := map[string]interface{}{
		"model":       c.model,
		"messages":    claudeMessages,
		"temperature": options.Temperature,
		"max_tokens":  maxTokens,
	}
	if len(system) > 0 {
		request["system"] = strings.Join(system, "\n\n")
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}
	if len(options.Tools) > 0 {
		tools := make([]map[string]interface{}, len(options.Tools))
		for i, t := range options.Tools {
			tools[i] = map[string]interface{}{"name": t.Name, "description": t.Description, "input_schema": t.Parameters}
		}
		request["tools"] = tools
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Claude API 返回错误 (%d): %s", response.StatusCode(), response.String())
	}

	var result claudeResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Claude 响应失败: %w", err)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("Claude API 没有返回结果")
	}

	out := &Response{
		FinishReason: result.StopReason,
		Usage:        usageFrom(result.Usage.InputTokens, result.Usage.OutputTokens, 0),
	}
	var text, thinking strings.Builder
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	out.Reasoning = thinking.String()
	return out, nil
}

// ChatWithContext 使用上下文聊天
func (c *ClaudeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	resp, err := c.Complete(ctx, messages, options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}
