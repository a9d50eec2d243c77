package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/internal/tool/registry"
	"github.com/AthenaAgent/athena-dr/pkg/log"
)

const defaultBrowseMaxChars = 32000

const browsePrompt = `We are searching on the internet for the following question:
%s
Here is some webpage scraped from the internet:
%s
Can you clean the raw webpage text and convert it into a more readable format? You should remove all the unnecessary information and keep the main content of the page. Please produce the output in the format of "Cleaned webpage text:\n[you text here]".`

// BrowseSummarizer 网页抓取工具的装饰器：抓取成功后由 LLM 按当前问题清洗正文，
// 保留 snippet ID 与 URL 头部，引用与链接统计不受影响。摘要失败时回退为原始正文。
type BrowseSummarizer struct {
	inner    tool.Tool
	client   llm.Client
	maxChars int
	logger   *log.Logger
}

// NewBrowseSummarizer 包装抓取工具；maxChars<=0 时使用 32000
func NewBrowseSummarizer(inner tool.Tool, client llm.Client, maxChars int, logger *log.Logger) *BrowseSummarizer {
	if maxChars <= 0 {
		maxChars = defaultBrowseMaxChars
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BrowseSummarizer{inner: inner, client: client, maxChars: maxChars, logger: logger}
}

func (b *BrowseSummarizer) Name() string        { return b.inner.Name() }
func (b *BrowseSummarizer) Description() string { return b.inner.Description() }
func (b *BrowseSummarizer) Schema() tool.Schema { return b.inner.Schema() }

func (b *BrowseSummarizer) SnippetPrefixes() []string {
	if sp, ok := b.inner.(tool.SnippetPrefixer); ok {
		return sp.SnippetPrefixes()
	}
	return nil
}

func (b *BrowseSummarizer) LinkKind() tool.LinkKind {
	if l, ok := b.inner.(tool.Linker); ok {
		return l.LinkKind()
	}
	return tool.LinkNone
}

// QuestionScoped 摘要随问题变化
func (b *BrowseSummarizer) QuestionScoped() bool { return true }

// Execute 实现 tool.Tool
func (b *BrowseSummarizer) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	res, err := b.inner.Execute(ctx, input)
	if err != nil || res.Failed() {
		return res, err
	}
	question := tool.QuestionFrom(ctx)
	if question == "" {
		return res, nil
	}
	header, body := splitPage(res.Content)
	if strings.TrimSpace(body) == "" {
		return res, nil
	}
	if len(body) > b.maxChars {
		body = body[:b.maxChars]
	}

	resp, err := b.client.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(browsePrompt, question, body)},
	}, llm.GenerateOptions{})
	if err != nil {
		b.logger.Warn("browse summary failed, keeping raw page", "tool", b.inner.Name(), "error", err)
		return res, nil
	}
	cleaned := cleanBrowseOutput(resp.Content)
	if cleaned == "" {
		return res, nil
	}
	if header == "" {
		return tool.ToolResult{Content: cleaned}, nil
	}
	return tool.ToolResult{Content: header + "\n\n" + cleaned}, nil
}

// splitPage 抓取输出以空行分隔头部（snippet ID、URL 等）与正文
func splitPage(content string) (header, body string) {
	if i := strings.Index(content, "\n\n"); i >= 0 {
		return content[:i], content[i+2:]
	}
	return "", content
}

func cleanBrowseOutput(s string) string {
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	if _, after, ok := strings.Cut(s, "Cleaned webpage text:"); ok {
		s = after
	}
	return strings.TrimSpace(s)
}

// EnableBrowseAgent 用 BrowseSummarizer 替换已注册的 jina / crawl4ai 抓取工具
func EnableBrowseAgent(reg *registry.Registry, client llm.Client, maxChars int, logger *log.Logger) []string {
	if reg == nil || client == nil {
		return nil
	}
	var wrapped []string
	for _, name := range []string{JinaToolName, Crawl4AIToolName} {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		if _, done := t.(*BrowseSummarizer); done {
			continue
		}
		reg.Register(NewBrowseSummarizer(t, client, maxChars, logger))
		wrapped = append(wrapped, name)
	}
	return wrapped
}
