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

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

const (
	// S2PaperSearchToolName 论文检索工具名
	S2PaperSearchToolName   = "semantic_scholar_paper_search"
	// S2SnippetSearchToolName 论文片段检索工具名
	S2SnippetSearchToolName = "semantic_scholar_snippet_search"

	s2GraphAPIURL      = "https://api.semanticscholar.org/graph/v1"
	s2PaperFields      = "paperId,corpusId,url,title,abstract,authors,authors.name,year,venue,citationCount,openAccessPdf,externalIds,isOpenAccess"
	abstractMaxChars   = 500
	maxAuthorsRendered = 5
)

// s2Paper Semantic Scholar 论文元数据（paper/search 与 paper/batch 共用）
type s2Paper struct {
	PaperID       string         `json:"paperId"`
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract"`
	Year          int            `json:"year"`
	Venue         string         `json:"venue"`
	CitationCount *int           `json:"citationCount"`
	ExternalIDs   map[string]any `json:"externalIds"`
	OpenAccessPdf *s2PDF         `json:"openAccessPdf"`
	Authors       []s2Author     `json:"authors"`
}

type s2PDF struct {
	URL string `json:"url"`
}

type s2Author struct {
	Name string `json:"name"`
}

// pdfURL 未提供 openAccessPdf 时按 ArXiv / ACL 外部 ID 构造
func (p *s2Paper) pdfURL() string {
	if p.OpenAccessPdf != nil && p.OpenAccessPdf.URL != "" {
		return p.OpenAccessPdf.URL
	}
	if v, ok := p.ExternalIDs["ArXiv"]; ok {
		return fmt.Sprintf("https://arxiv.org/pdf/%v", v)
	}
	if v, ok := p.ExternalIDs["ACL"]; ok {
		return fmt.Sprintf("https://www.aclweb.org/anthology/%v.pdf", v)
	}
	return ""
}

func authorList(names []string) string {
	out := strings.Join(names[:min(len(names), maxAuthorsRendered)], ", ")
	if len(names) > maxAuthorsRendered {
		out += " et al."
	}
	return out
}

// authorNames 片段接口的作者既可能是字符串也可能是 {name: ...}
func authorNames(authors []any) []string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		switch v := a.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			if n, ok := v["name"].(string); ok {
				names = append(names, n)
			}
		}
	}
	return names
}

func citationText(n *int) string {
	if n == nil {
		return "N/A"
	}
	return strconv.Itoa(*n)
}

func yearText(y int) string {
	if y == 0 {
		return "N/A"
	}
	return strconv.Itoa(y)
}

// S2PaperSearchTool 按关键词检索论文，输出 [s2_paper_N]
type S2PaperSearchTool struct {
	client *resty.Client
	apiKey string
}

// NewS2PaperSearchTool 创建论文检索工具
func NewS2PaperSearchTool(ep Endpoint) *S2PaperSearchTool {
	return &S2PaperSearchTool{client: newRestClient(ep.base(s2GraphAPIURL), ep.Timeout), apiKey: ep.APIKey}
}

func (t *S2PaperSearchTool) Name() string { return S2PaperSearchToolName }

func (t *S2PaperSearchTool) Description() string {
	return "Search for academic papers using Semantic Scholar API. Filters: publication year " +
		"(single year like '2024' or range like '2022-2025', '2020-', '-2023'), minimum citation count, " +
		"sort order (e.g., 'citationCount:asc', 'publicationDate:desc') and venue (e.g., 'ACL', 'EMNLP'). " +
		"Returns paper metadata with snippet IDs (e.g., [s2_paper_1]) for citation."
}

func (t *S2PaperSearchTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":              {Type: "string", Description: "Search query string for finding academic papers"},
			"year":               {Type: "string", Description: "Publication year filter, e.g. '2024', '2022-2025', '2020-', '-2023'"},
			"min_citation_count": {Type: "integer", Description: "Minimum number of citations required"},
			"sort":               {Type: "string", Description: "Sort order, e.g. 'citationCount:asc'"},
			"venue":              {Type: "string", Description: "Venue filter, e.g. 'ACL'"},
			"limit":              {Type: "integer", Description: "Maximum number of results to return (max: 100)", Default: 25},
		},
		Required: []string{"query"},
	}
}

func (t *S2PaperSearchTool) SnippetPrefixes() []string { return []string{"s2_paper_"} }

func (t *S2PaperSearchTool) LinkKind() tool.LinkKind { return tool.LinkSearch }

// Execute 实现 tool.Tool
func (t *S2PaperSearchTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query := stringArg(input, "query")
	if query == "" {
		return tool.ToolResult{Err: "query is required"}, nil
	}
	params := map[string]string{
		"query":  query,
		"offset": "0",
		"limit":  strconv.Itoa(min(intArg(input, "limit", 25), 100)),
		"fields": s2PaperFields,
	}
	for arg, param := range map[string]string{"year": "year", "sort": "sort", "venue": "venue"} {
		if v := stringArg(input, arg); v != "" {
			params[param] = v
		}
	}
	if n := intArg(input, "min_citation_count", -1); n >= 0 {
		params["minCitationCount"] = strconv.Itoa(n)
	}

	var data struct {
		Total int       `json:"total"`
		Data  []s2Paper `json:"data"`
	}
	r := t.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&data)
	if t.apiKey != "" {
		r.SetHeader("x-api-key", t.apiKey)
	}
	resp, err := r.Get("/paper/search")
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	if len(data.Data) == 0 {
		return tool.ToolResult{Content: "No papers found matching the query."}, nil
	}

	parts := make([]string, 0, len(data.Data))
	for i := range data.Data {
		p := &data.Data[i]
		names := make([]string, len(p.Authors))
		for j, a := range p.Authors {
			names[j] = a.Name
		}
		lines := []string{
			fmt.Sprintf("[s2_paper_%d] %s", i+1, orNA(p.Title)),
			"Authors: " + authorList(names),
			"Year: " + yearText(p.Year),
			"Venue: " + orNA(p.Venue),
			"Citations: " + citationText(p.CitationCount),
			"URL: " + orNA(p.URL),
		}
		if pdf := p.pdfURL(); pdf != "" {
			lines = append(lines, "PDF: "+pdf)
		}
		if p.Abstract != "" {
			lines = append(lines, "Abstract: "+utils.Truncate(p.Abstract, abstractMaxChars))
		}
		parts = append(parts, strings.Join(lines, "\n")+"\n")
	}
	header := fmt.Sprintf("Found %d total results. Showing %d papers:\n\n", data.Total, len(parts))
	return tool.ToolResult{Content: header + strings.Join(parts, "\n")}, nil
}

// S2SnippetSearchTool 在论文正文中检索片段，输出 [s2_snippet_N]
type S2SnippetSearchTool struct {
	client *resty.Client
	apiKey string
}

// NewS2SnippetSearchTool 创建片段检索工具
func NewS2SnippetSearchTool(ep Endpoint) *S2SnippetSearchTool {
	return &S2SnippetSearchTool{client: newRestClient(ep.base(s2GraphAPIURL), ep.Timeout), apiKey: ep.APIKey}
}

func (t *S2SnippetSearchTool) Name() string { return S2SnippetSearchToolName }

func (t *S2SnippetSearchTool) Description() string {
	return "Focused snippet retrieval from scientific papers using Semantic Scholar API. Use it to find " +
		"specific quotes, passages or mentions of concepts within papers. Each snippet carries an ID " +
		"(e.g., [s2_snippet_1]) for citation."
}

func (t *S2SnippetSearchTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":     {Type: "string", Description: "Search query string to find within paper content"},
			"year":      {Type: "string", Description: "Publication year filter, e.g. '2024' or '2022-2025'"},
			"paper_ids": {Type: "string", Description: "Comma-separated list of specific paper IDs to search within"},
			"venue":     {Type: "string", Description: "Venue filter, e.g. 'ACL'"},
			"limit":     {Type: "integer", Description: "Number of snippets to retrieve", Default: 10},
		},
		Required: []string{"query"},
	}
}

func (t *S2SnippetSearchTool) SnippetPrefixes() []string { return []string{"s2_snippet_"} }

func (t *S2SnippetSearchTool) LinkKind() tool.LinkKind { return tool.LinkSearch }

type s2SnippetResponse struct {
	Data []struct {
		Score   float64 `json:"score"`
		Snippet struct {
			Text    string `json:"text"`
			Section string `json:"section"`
		} `json:"snippet"`
		Paper struct {
			CorpusID json.Number `json:"corpusId"`
			Title    string      `json:"title"`
			Authors  []any       `json:"authors"`
		} `json:"paper"`
	} `json:"data"`
}

// Execute 实现 tool.Tool
func (t *S2SnippetSearchTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query := stringArg(input, "query")
	if query == "" {
		return tool.ToolResult{Err: "query is required"}, nil
	}
	params := map[string]string{
		"query": query,
		"limit": strconv.Itoa(intArg(input, "limit", 10)),
	}
	if v := stringArg(input, "year"); v != "" {
		params["year"] = v
	}
	if v := stringArg(input, "venue"); v != "" {
		params["venue"] = v
	}
	if v := stringArg(input, "paper_ids"); v != "" {
		ids := strings.Split(v, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		params["paperIds"] = strings.Join(ids, ",")
	}

	var data s2SnippetResponse
	r := t.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&data)
	if t.apiKey != "" {
		r.SetHeader("x-api-key", t.apiKey)
	}
	resp, err := r.Get("/snippet/search")
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	if len(data.Data) == 0 {
		return tool.ToolResult{Content: "No snippets found matching the query."}, nil
	}

	parts := make([]string, 0, len(data.Data))
	for i, d := range data.Data {
		lines := []string{fmt.Sprintf("[s2_snippet_%d] %s", i+1, orNA(d.Paper.Title))}
		if names := authorNames(d.Paper.Authors); len(names) > 0 {
			lines = append(lines, "Authors: "+authorList(names))
		}
		if d.Paper.CorpusID != "" {
			lines = append(lines, "URL: https://api.semanticscholar.org/CorpusId:"+d.Paper.CorpusID.String())
		}
		if d.Snippet.Section != "" {
			lines = append(lines, "Section: "+d.Snippet.Section)
		}
		lines = append(lines, "Text: "+strings.TrimSpace(d.Snippet.Text))
		parts = append(parts, strings.Join(lines, "\n")+"\n")
	}
	return tool.ToolResult{Content: strings.Join(parts, "\n")}, nil
}
