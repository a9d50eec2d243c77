package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hi", "reasoning": "think",
				"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "serper_search_tool", "arguments": "{\"query\":\"x\"}"}}]},
				"finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClientWithBaseURL("m", "sk-test", srv.URL)
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerateOptions{MaxTokens: 100, Reasoning: true})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, "think", resp.Reasoning)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "serper_search_tool", resp.ToolCalls[0].Name)
	assert.Equal(t, &Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "m", got["model"])
	assert.Equal(t, map[string]any{"enabled": true}, got["reasoning"])
	assert.NotContains(t, got, "tools")
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClientWithBaseURL("m", "k", srv.URL)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClaudeClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"content": [{"type": "thinking", "thinking": "hmm"}, {"type": "text", "text": "answer"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 7, "output_tokens": 3}}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient("claude", "k", srv.URL)
	require.NoError(t, err)
	resp, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
	}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, "hmm", resp.Reasoning)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
	assert.Equal(t, "sys", got["system"])
	assert.Len(t, got["messages"], 1)
}

func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/g:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "plan", "thought": true}, {"text": "done"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("g", "k", srv.URL)
	require.NoError(t, err)
	resp, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, "plan", resp.Reasoning)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestToolInfos(t *testing.T) {
	infos, err := ToolInfos([]ToolSpec{{
		Name:        "pubmed_search",
		Description: "search pubmed",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"q"},"limit":{"type":"integer"}},"required":["query"]}`),
	}})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "pubmed_search", infos[0].Name)
	assert.NotNil(t, infos[0].ParamsOneOf)

	params := paramInfos(jsonSchemaProp{
		Properties: map[string]jsonSchemaProp{"query": {Type: "string"}, "limit": {Type: "integer"}},
		Required:   []string{"query"},
	})
	assert.True(t, params["query"].Required)
	assert.False(t, params["limit"].Required)
	assert.Equal(t, schema.Integer, params["limit"].Type)
}

func TestRateLimiter_WaitClampsToBurst(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{"p": {TokensPerMinute: 60, MaxConcurrent: 1}}, nil)
	require.NoError(t, l.Wait(context.Background(), "p", 1_000_000))
	stats := l.GetStats("p")
	assert.Equal(t, 1, stats["current_concurrent"])
	l.Release("p")
	assert.Equal(t, 0, l.GetStats("p")["current_concurrent"])
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("nope", "m", "k", "")
	assert.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(nil, GenerateOptions{}))

	msgs := []Message{{Role: "user", Content: "12345678"}}
	assert.Equal(t, 2, estimateTokens(msgs, GenerateOptions{}))
	assert.Equal(t, 102, estimateTokens(msgs, GenerateOptions{MaxTokens: 100}))

	withTool := estimateTokens(msgs, GenerateOptions{Tools: []ToolSpec{{Name: "search", Description: "web search", Parameters: json.RawMessage(`{"type":"object"}`)}}})
	assert.Greater(t, withTool, 2)
}
