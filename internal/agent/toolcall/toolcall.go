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

// Package toolcall 从模型自由文本中抽取工具调用。
//
// 模型不一定遵循原生 function calling，同一回复中可能出现五种文本约定：
// <tool_call> 标签、<invoke> 包裹、[TOOL_CALL] 箭头/类 JSON、Action: JSON、[Event: {...}]。
// Extractor 按固定优先级依次尝试各语法，解析成功的块从文本中移除，失败的块原样保留。
package toolcall

import (
	"encoding/json"
	"fmt"
)

// 各语法的格式名，写入 Call.Format 便于追踪
const (
	FormatTag     = "tag"
	FormatInvoke  = "invoke"
	FormatBracket = "bracket"
	FormatAction  = "action"
	FormatEvent   = "event"
	FormatNative  = "native"
)

// Call 一次解析出的工具调用；创建后不再修改
type Call struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Format    string         `json:"format,omitempty"`
}

// ArgumentsJSON 返回参数的 JSON 编码（调试日志使用）
func (c Call) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Parser 单一语法的解析器：返回移除已解析块后的文本与调用列表；未解析出任何调用时 calls 为 nil 且文本不变
type Parser interface {
	Format() string
	Parse(text string) (string, []Call)
}

// Extractor 按顺序折叠多个 Parser，合并结果并统一重新编号
type Extractor struct {
	parsers []Parser
}

// Option 可选配置
type Option func(*extractorOptions)

type extractorOptions struct {
	aliases map[string]string
	parsers []Parser
}

// WithAliases 设置 Event 格式中 search_type/tool 到真实工具名的映射
func WithAliases(aliases map[string]string) Option {
	return func(o *extractorOptions) {
		o.aliases = aliases
	}
}

// WithParsers 覆盖默认语法列表（按给定顺序尝试）
func WithParsers(parsers ...Parser) Option {
	return func(o *extractorOptions) {
		o.parsers = parsers
	}
}

// DefaultAliases Event 格式的默认工具名映射
func DefaultAliases() map[string]string {
	return map[string]string{
		"scholarly_search": "semantic_scholar_paper_search",
		"web_search":       "serper_search_tool",
	}
}

// NewExtractor 创建 Extractor；默认顺序 tag -> invoke -> bracket -> action -> event
func NewExtractor(opts ...Option) *Extractor {
	o := &extractorOptions{}
	for _, fn := range opts {
		fn(o)
	}
	if o.aliases == nil {
		o.aliases = DefaultAliases()
	}
	parsers := o.parsers
	if parsers == nil {
		parsers = []Parser{
			TagParser{},
			InvokeParser{},
			BracketParser{},
			ActionParser{},
			NewEventParser(o.aliases),
		}
	}
	return &Extractor{parsers: parsers}
}

// Extract 返回 (剩余文本, 调用列表)；未发现任何调用时列表为 nil。
// ID 按抽取顺序跨语法统一编号为 call_0..call_{n-1}。
func (e *Extractor) Extract(text string) (string, []Call) {
	if text == "" {
		return text, nil
	}
	var all []Call
	for _, p := range e.parsers {
		var calls []Call
		text, calls = p.Parse(text)
		for _, c := range calls {
			c.ID = fmt.Sprintf("call_%d", len(all))
			if c.Format == "" {
				c.Format = p.Format()
			}
			if c.Arguments == nil {
				c.Arguments = map[string]any{}
			}
			all = append(all, c)
		}
	}
	return text, all
}

var defaultExtractor = NewExtractor()

// Extract 使用默认配置抽取工具调用
func Extract(text string) (string, []Call) {
	return defaultExtractor.Extract(text)
}

// FromNative 将模型原生返回的工具调用（参数为 JSON 字符串）转换为 Call；
// 数字与文本协议一致：整数为 int，其余为 float64。参数无法解析时返回空参数，由 Schema 校验报告缺参。
func FromNative(id, name, argsJSON string) Call {
	c := Call{ID: id, Name: name, Arguments: map[string]any{}, Format: FormatNative}
	if argsJSON == "" {
		return c
	}
	v, err := decodeJSON(argsJSON)
	if err != nil {
		return c
	}
	if m, ok := normalizeJSON(v).(map[string]any); ok {
		c.Arguments = m
	}
	return c
}
