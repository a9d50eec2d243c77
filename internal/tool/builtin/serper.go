package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
)

// SerperToolName 网页搜索工具名
const SerperToolName = "serper_search_tool"

// SerperTool 通过 serper.dev 进行 Google 搜索，输出带 [serper_N] 片段 ID
type SerperTool struct {
	client *resty.Client
	apiKey string
}

// NewSerperTool 创建搜索工具
func NewSerperTool(ep Endpoint) *SerperTool {
	return &SerperTool{
		client: newRestClient(ep.base("https://google.serper.dev"), ep.Timeout),
		apiKey: ep.APIKey,
	}
}

func (t *SerperTool) Name() string { return SerperToolName }

func (t *SerperTool) Description() string {
	return "Search the web using serper. Returns search results with snippet IDs for citation " +
		"(e.g., [serper_1], [serper_2]). Use these IDs to cite sources with <cite id=\"serper_1\">claim</cite>."
}

func (t *SerperTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "the query to search"},
		},
		Required: []string{"query"},
	}
}

func (t *SerperTool) SnippetPrefixes() []string { return []string{"serper_"} }

func (t *SerperTool) LinkKind() tool.LinkKind { return tool.LinkSearch }

type serperResponse struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title       string            `json:"title"`
		Type        string            `json:"type"`
		Description string            `json:"description"`
		Website     string            `json:"website"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Execute 实现 tool.Tool
func (t *SerperTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query := stringArg(input, "query")
	if query == "" {
		return tool.ToolResult{Err: "query is required"}, nil
	}
	var data serperResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", t.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"q": query}).
		SetResult(&data).
		Post("/search")
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	return tool.ToolResult{Content: formatSerper(&data)}, nil
}

func formatSerper(data *serperResponse) string {
	var parts []string
	if ab := data.AnswerBox; ab != nil {
		answer := ab.Answer
		if answer == "" {
			answer = ab.Snippet
		}
		title := ab.Title
		if title == "" {
			title = "Direct Answer"
		}
		parts = append(parts, fmt.Sprintf("[serper_answer] Answer Box: %s\nAnswer: %s\nURL: %s\n", title, answer, orNA(ab.Link)))
	}
	if kg := data.KnowledgeGraph; kg != nil {
		lines := []string{"[serper_kg] Knowledge Graph: " + orNA(kg.Title)}
		if kg.Type != "" {
			lines = append(lines, "Type: "+kg.Type)
		}
		if kg.Description != "" {
			lines = append(lines, "Description: "+kg.Description)
		}
		if kg.Website != "" {
			lines = append(lines, "URL: "+kg.Website)
		}
		keys := make([]string, 0, len(kg.Attributes))
		for k := range kg.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, k+": "+kg.Attributes[k])
		}
		parts = append(parts, strings.Join(lines, "\n")+"\n")
	}
	for i, r := range data.Organic {
		parts = append(parts, fmt.Sprintf("[serper_%d] %s\nURL: %s\nSnippet: %s\n", i+1, orNA(r.Title), orNA(r.Link), orNA(r.Snippet)))
	}
	if len(parts) == 0 {
		return "No results found."
	}
	return strings.Join(parts, "\n")
}
