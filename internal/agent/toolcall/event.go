package toolcall

import (
	"regexp"
	"strings"
)

var (
	eventMarkerRe = regexp.MustCompile(`\[Event:\s*\{`)
	eventSuffixRe = regexp.MustCompile(`^\s*\]`)
	eventBlockRe  = regexp.MustCompile(`\[Event:\s*(\{[^\]]*\})\s*\]`)
)

// FetchToolName webpage_url 简写映射到的网页抓取工具
const FetchToolName = "crawl4ai_fetch_webpage_content"

// EventParser 解析 [Event: {"tool_calls": [...]}]，以及 tool_calls/顶层的 webpage_url 简写
type EventParser struct {
	aliases map[string]string
}

// NewEventParser aliases 为 search_type/tool 到真实工具名的映射
func NewEventParser(aliases map[string]string) EventParser {
	return EventParser{aliases: aliases}
}

func (EventParser) Format() string { return FormatEvent }

func (p EventParser) Parse(text string) (string, []Call) {
	if !strings.Contains(text, "[Event:") {
		return text, nil
	}
	var (
		calls []Call
		spans []span
	)
	blocks := locateObjects(text, eventMarkerRe, eventSuffixRe, eventBlockRe, func(t string, loc []int) string {
		return t[loc[2]:loc[3]]
	})
	for _, b := range blocks {
		v, err := decodeJSON(b.body)
		if err != nil {
			continue
		}
		data, ok := v.(map[string]any)
		if !ok {
			continue
		}
		parsed := p.callsFromEvent(data)
		if len(parsed) == 0 {
			continue
		}
		calls = append(calls, parsed...)
		spans = append(spans, span{b.start, b.end})
	}
	if len(calls) == 0 {
		return text, nil
	}
	return removeSpans(text, spans), calls
}

func (p EventParser) callsFromEvent(data map[string]any) []Call {
	raw, has := data["tool_calls"]
	if !has {
		if url, ok := data["webpage_url"]; ok {
			return []Call{fetchCall(url)}
		}
		return nil
	}
	switch t := raw.(type) {
	case []any:
		var out []Call
		for _, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name := popString(obj, "search_type")
			if name == "" {
				name = popString(obj, "tool")
			}
			if name == "" {
				continue
			}
			if alias, ok := p.aliases[name]; ok {
				name = alias
			}
			out = append(out, Call{Name: name, Arguments: obj, Format: FormatEvent})
		}
		return out
	case map[string]any:
		if url, ok := t["webpage_url"]; ok {
			return []Call{fetchCall(url)}
		}
	}
	return nil
}

func fetchCall(url any) Call {
	return Call{Name: FetchToolName, Arguments: map[string]any{"url": url}, Format: FormatEvent}
}

// popString 取出并删除 key；仅当值为非空字符串时返回
func popString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}
