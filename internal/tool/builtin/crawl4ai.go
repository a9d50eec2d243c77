package builtin

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/agent/toolcall"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// Crawl4AIToolName 与 [Event: {...webpage_url}] 隐式抓取调用使用同一工具名
const Crawl4AIToolName = toolcall.FetchToolName

// Crawl4AITool 调用自托管 Crawl4AI 服务的 /md 接口，把网页转为 markdown
type Crawl4AITool struct {
	client *resty.Client
	apiKey string
}

// NewCrawl4AITool 创建 Crawl4AI 抓取工具，默认连接本机 11235 端口
func NewCrawl4AITool(ep Endpoint) *Crawl4AITool {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Crawl4AITool{
		client: newRestClient(ep.base("http://localhost:11235"), timeout),
		apiKey: ep.APIKey,
	}
}

func (t *Crawl4AITool) Name() string { return Crawl4AIToolName }

func (t *Crawl4AITool) Description() string {
	return "Open a specific URL and extract readable page text as markdown using Crawl4AI. " +
		"Useful for reading articles, documentation and webpages returned by search. " +
		"Returns content with a snippet ID (e.g., [crawl4ai_<url_hash>]) for citation."
}

func (t *Crawl4AITool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"url":          {Type: "string", Description: "URL to fetch and extract content from"},
			"bm25_query":   {Type: "string", Description: "Optional query to enable BM25-based content filtering for focused extraction"},
			"use_pruning":  {Type: "boolean", Description: "Apply pruning content filter to extract main content (used when bm25_query is not provided)", Default: false},
			"ignore_links": {Type: "boolean", Description: "If true, remove hyperlinks in markdown", Default: true},
		},
		Required: []string{"url"},
	}
}

func (t *Crawl4AITool) SnippetPrefixes() []string { return []string{"crawl4ai_"} }

func (t *Crawl4AITool) LinkKind() tool.LinkKind { return tool.LinkBrowse }

type crawl4aiRequest struct {
	URL    string `json:"url"`
	Filter string `json:"f"`
	Query  string `json:"q,omitempty"`
	Cache  string `json:"c"`
}

type crawl4aiResponse struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// Execute 实现 tool.Tool
func (t *Crawl4AITool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	url := stringArg(input, "url")
	if url == "" {
		return tool.ToolResult{Err: "url is required"}, nil
	}
	id := "crawl4ai_" + utils.ShortHash(url)
	req := crawl4aiRequest{URL: url, Filter: "raw", Cache: "0"}
	if q := stringArg(input, "bm25_query"); q != "" {
		req.Filter, req.Query = "bm25", q
	} else if boolArg(input, "use_pruning", false) {
		req.Filter = "fit"
	}

	var data crawl4aiResponse
	r := t.client.R().SetContext(ctx).SetBody(req).SetResult(&data)
	if t.apiKey != "" {
		r.SetAuthToken(t.apiKey)
	}
	resp, err := r.Post("/md")
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	if !data.Success {
		msg := data.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return tool.ToolResult{
			Content: "[" + id + "] Error fetching URL: " + url + "\nError: " + msg,
			Err:     msg,
		}, nil
	}

	md := data.Markdown
	if boolArg(input, "ignore_links", true) {
		md = stripMarkdownLinks(md)
	}
	if strings.TrimSpace(md) == "" {
		md = "No content extracted."
	}
	return tool.ToolResult{Content: "[" + id + "] " + url + "\nURL: " + url + "\n\n" + md}, nil
}

var markdownLinkRe = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)

// stripMarkdownLinks 把 [text](href) 还原为 text
func stripMarkdownLinks(md string) string {
	return markdownLinkRe.ReplaceAllString(md, "$1")
}
