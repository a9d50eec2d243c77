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
	"time"

	"github.com/AthenaAgent/athena-dr/pkg/metrics"
)

// RateLimitedClient 包装任意 LLM Client，在真实调用前后执行限流并上报 token 指标
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Complete 实现 Client.Complete
func (c *RateLimitedClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error) {
	provider := c.inner.Provider()
	if c.rateLimiter != nil {
		estimated := estimateTokens(messages, options)
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider, estimated); err != nil {
			return nil, err
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release(provider)
	}

	resp, err := c.inner.Complete(ctx, messages, options)
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		metrics.LLMTokensTotal.WithLabelValues(provider, "input").Add(float64(resp.Usage.InputTokens))
		metrics.LLMTokensTotal.WithLabelValues(provider, "output").Add(float64(resp.Usage.OutputTokens))
		if c.rateLimiter != nil {
			c.rateLimiter.RecordTokenUsage(provider, resp.Usage.TotalTokens)
		}
	}
	return resp, nil
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	resp, err := c.Complete(ctx, messages, options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model 返回底层 Client 的模型名称。
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称。
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 粗略估算请求 token（4 字节约 1 token），含消息、原生工具 schema 与输出上限
func estimateTokens(messages []Message, options GenerateOptions) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
		for _, tc := range m.ToolCalls {
			n += len(tc.Name) + len(tc.Arguments)
		}
	}
	for _, t := range options.Tools {
		n += len(t.Name) + len(t.Description) + len(t.Parameters)
	}
	estimated := n/4 + max(options.MaxTokens, 0)
	return max(estimated, 1)
}
