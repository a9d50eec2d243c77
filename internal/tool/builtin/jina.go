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
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// JinaToolName Jina Reader 网页抓取工具名
const JinaToolName = "jina_fetch_webpage_content"

// JinaTool 通过 Jina Reader API 抓取网页正文；片段 ID 为 jina_ + md5(url) 前 8 位
type JinaTool struct {
	client *resty.Client
	apiKey string
}

// NewJinaTool 创建 Jina 抓取工具
func NewJinaTool(ep Endpoint) *JinaTool {
	return &JinaTool{
		client: newRestClient(ep.base("https://r.jina.ai"), ep.Timeout),
		apiKey: ep.APIKey,
	}
}

func (t *JinaTool) Name() string { return JinaToolName }

func (t *JinaTool) Description() string {
	return "Fetch the content of a webpage using Jina Reader API. Returns clean text/markdown with a snippet ID " +
		"(e.g., [jina_<url_hash>]) for citation. Use this ID to cite sources with <cite id=\"jina_...\">claim</cite>."
}

func (t *JinaTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"webpage_url": {Type: "string", Description: "The URL of the webpage to fetch"},
			"timeout":     {Type: "integer", Description: "Request timeout in seconds", Default: 30},
		},
		Required: []string{"webpage_url"},
	}
}

func (t *JinaTool) SnippetPrefixes() []string { return []string{"jina_"} }

func (t *JinaTool) LinkKind() tool.LinkKind { return tool.LinkBrowse }

type jinaResponse struct {
	Data struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		Content       string `json:"content"`
		Description   string `json:"description"`
		PublishedTime string `json:"publishedTime"`
	} `json:"data"`
}

// JinaSnippetID 网页 URL 对应的片段 ID
func JinaSnippetID(url string) string {
	return "jina_" + utils.ShortHash(url)
}

// Execute 实现 tool.Tool
func (t *JinaTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	url := stringArg(input, "webpage_url")
	if url == "" {
		url = stringArg(input, "url")
	}
	if url == "" {
		return tool.ToolResult{Err: "webpage_url is required"}, nil
	}
	id := JinaSnippetID(url)
	fail := func(msg string) (tool.ToolResult, error) {
		return tool.ToolResult{
			Content: "[" + id + "] Error fetching URL: " + url + "\nError: " + msg,
			Err:     msg,
		}, nil
	}
	if t.apiKey == "" {
		return fail("JINA_API_KEY is not set")
	}

	timeout := time.Duration(intArg(input, "timeout", 30)) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var data jinaResponse
	resp, err := t.client.R().
		SetContext(reqCtx).
		SetAuthToken(t.apiKey).
		SetHeader("Accept", "application/json").
		SetResult(&data).
		Get("/" + url)
	if err != nil {
		return fail(err.Error())
	}
	if resp.IsError() {
		return fail(statusError(resp))
	}

	d := data.Data
	if d.URL == "" {
		d.URL = url
	}
	title := d.Title
	if title == "" {
		title = "Untitled"
	}
	lines := []string{"[" + id + "] " + title, "URL: " + d.URL}
	if d.Description != "" {
		lines = append(lines, "Description: "+d.Description)
	}
	if d.PublishedTime != "" {
		lines = append(lines, "Published: "+d.PublishedTime)
	}
	lines = append(lines, "")
	if d.Content != "" {
		lines = append(lines, d.Content)
	} else {
		lines = append(lines, "No content extracted.")
	}
	return tool.ToolResult{Content: strings.Join(lines, "\n")}, nil
}
