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

// GeminiClient Gemini generateContent 客户端
type GeminiClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewGeminiClient 创建新的 Gemini 客户端；baseURL 为空时用默认或 GEMINI_BASE_URL
func NewGeminiClient(model, apiKey, baseURL string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
		if envURL := getEnv("GEMINI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(5 * time.Minute)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &GeminiClient{
		provider: "gemini",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				Thought      bool   `json:"thought"`
				FunctionCall *struct {
					Name string          `json:"name"`
					Args json.RawMessage `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

// Complete 调用 models/{model}:generateContent
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error) {
	var (
		system   []string
		contents []map[string]interface{}
	)
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		contents = append(contents, map[string]interface{}{
			"role":  geminiRole(msg.Role),
			"parts": []map[string]interface{}{{"text": msg.Content}},
		})
	}

	genConfig := map[string]interface{}{
		"temperature": options.Temperature,
	}
	if options.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = options.MaxTokens
	}
	if options.TopP > 0 {
		genConfig["topP"] = options.TopP
	}
	if len(options.Stop) > 0 {
		genConfig["stopSequences"] = options.Stop
	}
	request := map[string]interface{}{
		"contents":         contents,
		"generationConfig": genConfig,
	}
	if len(system) > 0 {
		request["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": strings.Join(system, "\n\n")}},
		}
	}
	if len(options.Tools) > 0 {
		decls := make([]map[string]interface{}, len(options.Tools))
		for i, t := range options.Tools {
			decls[i] = map[string]interface{}{"name": t.Name, "description": t.Description, "parameters": t.Parameters}
		}
		request["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("调用 Gemini API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Gemini API 返回错误 (%d): %s", response.StatusCode(), response.String())
	}

	var result geminiResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("Gemini API 没有返回结果")
	}

	cand := result.Candidates[0]
	out := &Response{
		FinishReason: cand.FinishReason,
		Usage: usageFrom(result.UsageMetadata.PromptTokenCount,
			result.UsageMetadata.CandidatesTokenCount, result.UsageMetadata.TotalTokenCount),
	}
	var text, thought strings.Builder
	for i, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args := string(part.FunctionCall.Args)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("gemini_call_%d", i),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		case part.Thought:
			thought.WriteString(part.Text)
		default:
			text.WriteString(part.Text)
		}
	}
	out.Content = text.String()
	out.Reasoning = thought.String()
	return out, nil
}

// ChatWithContext 使用上下文聊天
func (c *GeminiClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	resp, err := c.Complete(ctx, messages, options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return c.provider
}
