package grader

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/AthenaAgent/athena-dr/pkg/config"
)

// gradingTemplate 评审提示词：模型只回复一个字母，A 表示正确
const gradingTemplate = `Your job is to look at a question, a gold target, and a predicted answer, and then assign a grade of either ["CORRECT", "INCORRECT", "NOT_ATTEMPTED"].

The predicted answer is CORRECT when it contains the essential information of the gold target without contradicting it. Differences in capitalization, punctuation, grammar, ordering or extra hedging detail do not matter, and numbers only need to match to the last significant figure of the gold target.
The predicted answer is INCORRECT when any part of it contradicts the gold target, even if it is hedged.
The predicted answer is NOT_ATTEMPTED when the essential information of the gold target is missing but nothing contradicts it.

Question: %s
Gold target: %s
Predicted answer: %s

Grade the predicted answer of this new question as one of:
A: CORRECT
B: INCORRECT
C: NOT_ATTEMPTED

Just return the letters "A", "B", or "C", with no text around it.`

// GradingPrompt 填充评审提示词
func GradingPrompt(question, target, predicted string) string {
	return fmt.Sprintf(gradingTemplate, question, target, predicted)
}

// Grader 语义评审
type Grader interface {
	Grade(ctx context.Context, question, target, predicted string) (bool, error)
}

// LLMGrader 使用 OpenAI / Azure OpenAI 聊天模型作评审
type LLMGrader struct {
	client      *openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewLLMGrader 按 provider（openai | azure）创建评审客户端
func NewLLMGrader(cfg config.GraderConfig) (*LLMGrader, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("grader model is required")
	}
	var client *openai.Client
	switch cfg.Provider {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure grader requires base_url")
		}
		client = openai.NewClient(
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	case "", "openai":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client = openai.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported grader provider: %s", cfg.Provider)
	}
	return &LLMGrader{
		client:      client,
		model:       strings.TrimPrefix(cfg.Model, "azure/"),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// Grade 回复（去空白、忽略大小写）恰为 "a" 时判定正确
func (g *LLMGrader) Grade(ctx context.Context, question, target, predicted string) (bool, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.F(g.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(GradingPrompt(question, target, predicted)),
		}),
		Temperature: openai.F(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.F(g.maxTokens)
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return false, fmt.Errorf("grader completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("grader returned no choices")
	}
	return IsCorrectVerdict(resp.Choices[0].Message.Content), nil
}

// IsCorrectVerdict 评审回复是否为 A
func IsCorrectVerdict(reply string) bool {
	return strings.EqualFold(strings.TrimSpace(reply), "a")
}
