package toolcall

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	actionMarkerRe   = regexp.MustCompile(`Action:\s*\{`)
	actionBlockRe    = regexp.MustCompile(`Action:\s*\{([^}]*(?:\{[^}]*\}[^}]*)*)\}`)
	actionNameRe     = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	actionArgsRe     = regexp.MustCompile(`"arguments"\s*:\s*\{([^}]*)\}`)
	actionKeyValueRe = regexp.MustCompile(`"(\w+)"\s*:\s*(?:"([^"]*)"|([\d.]+)|(\w+))`)
	// 模型常在 Action 后留下空 cite 与分隔线
	danglingCiteRe = regexp.MustCompile(`<cite\s+id=['"][^'"]*['"]\s*>\s*</cite>\s*---?`)
)

// ActionParser 解析 Action: {"name": ..., "arguments": {...}}
type ActionParser struct{}

func (ActionParser) Format() string { return FormatAction }

func (ActionParser) Parse(text string) (string, []Call) {
	if !strings.Contains(text, "Action:") {
		return text, nil
	}
	var (
		calls []Call
		spans []span
	)
	blocks := locateObjects(text, actionMarkerRe, nil, actionBlockRe, func(t string, loc []int) string {
		return "{" + t[loc[2]:loc[3]] + "}"
	})
	for _, b := range blocks {
		call, ok := parseActionBlock(text[b.start:b.end], b.body)
		if !ok {
			continue
		}
		calls = append(calls, call)
		spans = append(spans, span{b.start, b.end})
	}
	if len(calls) == 0 {
		return text, nil
	}
	cleaned := removeSpans(text, spans)
	return strings.TrimSpace(danglingCiteRe.ReplaceAllString(cleaned, "")), calls
}

func parseActionBlock(block, body string) (Call, bool) {
	if v, err := decodeJSON(body); err == nil {
		if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
			name, _ := obj["name"].(string)
			if name == "" {
				return Call{}, false
			}
			return Call{Name: name, Arguments: actionArguments(obj["arguments"]), Format: FormatAction}, true
		}
	}

	nm := actionNameRe.FindStringSubmatch(block)
	if nm == nil {
		return Call{}, false
	}
	args := map[string]any{}
	if am := actionArgsRe.FindStringSubmatch(block); am != nil {
		inner := am[1]
		for _, idx := range actionKeyValueRe.FindAllStringSubmatchIndex(inner, -1) {
			key := inner[idx[2]:idx[3]]
			switch {
			case idx[4] >= 0:
				args[key] = inner[idx[4]:idx[5]]
			case idx[6] >= 0:
				args[key] = parseNumber(inner[idx[6]:idx[7]])
			case idx[8] >= 0:
				args[key] = inner[idx[8]:idx[9]]
			}
		}
	}
	return Call{Name: nm[1], Arguments: args, Format: FormatAction}, true
}

// actionArguments arguments 可能是对象，也可能是被再次编码的 JSON 字符串
func actionArguments(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		if decoded, err := decodeJSON(t); err == nil {
			if m, ok := decoded.(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

// parseNumber 纯数字为 int，否则尝试 float；都失败时保留原文
func parseNumber(s string) any {
	if isDigits(s) {
		return coerceScalar(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
