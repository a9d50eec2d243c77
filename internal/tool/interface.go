package tool

import (
	"context"
)

// Schema 表示工具的 JSON Schema（供 LLM function-calling 与参数校验使用）
type Schema struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
	Default     any             `json:"default,omitempty"`
}

// ToolResult 工具执行结果；Err 非空表示工具自身失败（区别于传输层 error）
type ToolResult struct {
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Failed 工具是否报告失败
func (r ToolResult) Failed() bool { return r.Err != "" }

// Tool Runtime 级工具接口
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, input map[string]any) (ToolResult, error)
}

// SnippetPrefixer 由输出带 snippet ID（如 [serper_1]）的工具实现，注册时自动登记前缀
type SnippetPrefixer interface {
	SnippetPrefixes() []string
}

// Linker 声明工具调用的 URL 归类：search 类工具产出 searched_links，fetch 类工具产出 browsed_links
type Linker interface {
	LinkKind() LinkKind
}

// LinkKind 工具输出中链接的归类
type LinkKind string

const (
	LinkNone   LinkKind = ""
	LinkSearch LinkKind = "search"
	LinkBrowse LinkKind = "browse"
)
