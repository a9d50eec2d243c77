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
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// PDFToolName PDF 全文读取工具名
const PDFToolName = "pdf_fetch_content"

// PDFTool 下载 PDF（如 S2 返回的 openAccessPdf 链接）并抽取正文；片段 ID 为 pdf_ + md5(url) 前 8 位
type PDFTool struct {
	client   *resty.Client
	maxBytes int64
	maxChars int
}

// NewPDFTool 创建 PDF 读取工具；maxBytes/maxChars<=0 时使用 20MB / 20000 字符
func NewPDFTool(ep Endpoint, maxBytes int64, maxChars int) *PDFTool {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &PDFTool{client: newRestClient(ep.BaseURL, ep.Timeout), maxBytes: maxBytes, maxChars: maxChars}
}

func (t *PDFTool) Name() string { return PDFToolName }

func (t *PDFTool) Description() string {
	return "Download a PDF (for example an open-access paper link) and extract its text. " +
		"Returns content with a snippet ID (e.g., [pdf_<url_hash>]) for citation."
}

func (t *PDFTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"url": {Type: "string", Description: "URL of the PDF file"},
		},
		Required: []string{"url"},
	}
}

func (t *PDFTool) SnippetPrefixes() []string { return []string{"pdf_"} }

func (t *PDFTool) LinkKind() tool.LinkKind { return tool.LinkBrowse }

// Execute 实现 tool.Tool
func (t *PDFTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	url := stringArg(input, "url")
	if url == "" {
		return tool.ToolResult{Err: "url is required"}, nil
	}
	id := "pdf_" + utils.ShortHash(url)
	resp, err := t.client.R().SetContext(ctx).SetHeader("Accept", "application/pdf").Get(url)
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	body := resp.Body()
	if int64(len(body)) > t.maxBytes {
		return tool.ToolResult{Err: fmt.Sprintf("pdf too large: %d bytes (limit %d)", len(body), t.maxBytes)}, nil
	}
	text, err := ExtractPDFText(body)
	if err != nil && text == "" {
		return tool.ToolResult{Err: err.Error()}, nil
	}
	if text == "" {
		text = "No content extracted."
	}
	return tool.ToolResult{Content: "[" + id + "] " + url + "\nURL: " + url + "\n\n" + utils.Truncate(text, t.maxChars)}, nil
}

// ExtractPDFText 从 PDF 二进制数据中提取正文文本，按页拼接；出错时返回已提取部分
func ExtractPDFText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("get page count: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return strings.TrimSpace(buf.String()), fmt.Errorf("get page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return strings.TrimSpace(buf.String()), fmt.Errorf("page %d extractor: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return strings.TrimSpace(buf.String()), fmt.Errorf("extract page %d: %w", i, err)
		}
		if text != "" {
			buf.WriteString(text)
			if i < numPages {
				buf.WriteString("\n\n")
			}
		}
	}

	return strings.TrimSpace(buf.String()), nil
}
