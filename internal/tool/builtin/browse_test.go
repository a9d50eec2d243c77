package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/internal/tool/registry"
)

type readerLLM struct {
	reply string
	err   error
	seen  []llm.Message
}

func (r *readerLLM) Complete(_ context.Context, msgs []llm.Message, _ llm.GenerateOptions) (*llm.Response, error) {
	r.seen = append(r.seen, msgs...)
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: r.reply}, nil
}

func (r *readerLLM) ChatWithContext(ctx context.Context, msgs []llm.Message, o llm.GenerateOptions) (string, error) {
	resp, err := r.Complete(ctx, msgs, o)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (r *readerLLM) Model() string    { return "reader" }
func (r *readerLLM) Provider() string { return "test" }

type pageTool struct {
	content string
	err     string
}

func (p pageTool) Name() string        { return JinaToolName }
func (p pageTool) Description() string { return "fetch" }
func (p pageTool) Schema() tool.Schema {
	return tool.Schema{Type: "object", Properties: map[string]tool.SchemaProperty{"webpage_url": {Type: "string"}}}
}
func (p pageTool) Execute(context.Context, map[string]any) (tool.ToolResult, error) {
	return tool.ToolResult{Content: p.content, Err: p.err}, nil
}
func (p pageTool) SnippetPrefixes() []string { return []string{"jina_"} }
func (p pageTool) LinkKind() tool.LinkKind   { return tool.LinkBrowse }

const rawPage = "[jina_1a2b3c4d] Paris\nURL: https://en.wikipedia.org/wiki/Paris\n\nMenu Login Paris is the capital of France. Footer"

func TestBrowseSummarizer_CleansBody(t *testing.T) {
	reader := &readerLLM{reply: "<think>drop nav</think>Cleaned webpage text:\nParis is the capital of France."}
	b := NewBrowseSummarizer(pageTool{content: rawPage}, reader, 0, nil)

	ctx := tool.WithQuestion(context.Background(), "capital of France?")
	res, err := b.Execute(ctx, map[string]any{"webpage_url": "https://en.wikipedia.org/wiki/Paris"})
	require.NoError(t, err)
	assert.Equal(t, "[jina_1a2b3c4d] Paris\nURL: https://en.wikipedia.org/wiki/Paris\n\nParis is the capital of France.", res.Content)

	require.Len(t, reader.seen, 1)
	assert.Contains(t, reader.seen[0].Content, "capital of France?")
	assert.Contains(t, reader.seen[0].Content, "Menu Login")
	assert.NotContains(t, reader.seen[0].Content, "URL: https://")

	assert.Equal(t, []string{"jina_"}, b.SnippetPrefixes())
	assert.Equal(t, tool.LinkBrowse, b.LinkKind())
	assert.True(t, b.QuestionScoped())
}

func TestBrowseSummarizer_FallsBackToRawPage(t *testing.T) {
	ctx := tool.WithQuestion(context.Background(), "q")

	failing := NewBrowseSummarizer(pageTool{content: rawPage}, &readerLLM{err: errors.New("503")}, 0, nil)
	res, err := failing.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, rawPage, res.Content)

	broken := pageTool{content: "[jina_x] Error fetching URL: u", err: "timeout"}
	reader := &readerLLM{reply: "unused"}
	res, err = NewBrowseSummarizer(broken, reader, 0, nil).Execute(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Empty(t, reader.seen)

	res, err = NewBrowseSummarizer(pageTool{content: rawPage}, reader, 0, nil).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, rawPage, res.Content, "no question in context")
}

func TestBrowseSummarizer_TruncatesBody(t *testing.T) {
	reader := &readerLLM{reply: "short"}
	b := NewBrowseSummarizer(pageTool{content: "[jina_1] t\nURL: u\n\n0123456789"}, reader, 4, nil)
	_, err := b.Execute(tool.WithQuestion(context.Background(), "q"), nil)
	require.NoError(t, err)
	require.Len(t, reader.seen, 1)
	assert.Contains(t, reader.seen[0].Content, "\n0123\n")
	assert.NotContains(t, reader.seen[0].Content, "01234")
}

func TestEnableBrowseAgent(t *testing.T) {
	prefixes := citation.NewRegistry()
	reg := registry.New(registry.WithPrefixRegistry(prefixes))
	reg.Register(NewJinaTool(Endpoint{APIKey: "k"}))
	reg.Register(NewSerperTool(Endpoint{APIKey: "k"}))

	wrapped := EnableBrowseAgent(reg, &readerLLM{}, 0, nil)
	assert.Equal(t, []string{JinaToolName}, wrapped)
	got, ok := reg.Get(JinaToolName)
	require.True(t, ok)
	assert.IsType(t, &BrowseSummarizer{}, got)
	assert.Equal(t, tool.LinkBrowse, reg.LinkKind(JinaToolName))
	assert.Contains(t, prefixes.Prefixes(), "jina_")

	assert.Empty(t, EnableBrowseAgent(reg, &readerLLM{}, 0, nil), "already wrapped")
	assert.Nil(t, EnableBrowseAgent(reg, nil, 0, nil))
}
