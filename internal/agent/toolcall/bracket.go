package toolcall

import (
	"regexp"
	"strings"
)

var (
	bracketBlockRe  = regexp.MustCompile(`(?s)\[TOOL_CALL\](.*?)\[/TOOL_CALL\]`)
	arrowToolRe     = regexp.MustCompile(`\{\s*tool\s*=>\s*"([^"]+)"`)
	arrowArgsRe     = regexp.MustCompile(`args\s*=>\s*\{([^}]*(?:\{[^}]*\}[^}]*)*)\}`)
	cliArgRe        = regexp.MustCompile(`--(\w+)\s+(?:"([^"]*)"|(\S+))`)
	looseNameRe     = regexp.MustCompile(`['"]name['"]\s*:\s*['"]([^'"]+)['"]`)
	looseArgsRe     = regexp.MustCompile(`['"]args['"]\s*:\s*\{([^}]*)\}`)
	looseKeyValueRe = regexp.MustCompile(`['"](\w+)['"]\s*:\s*(?:['"]([^'"]*)['"]|(\d+))`)
)

// BracketParser 解析 [TOOL_CALL]...[/TOOL_CALL]，块内支持两种写法：
//
//	{tool => "name", args => { --query "a b" --limit 5 }}
//	{'name': 'name', 'args': {'query': 'a b', 'limit': 5}}
type BracketParser struct{}

func (BracketParser) Format() string { return FormatBracket }

func (BracketParser) Parse(text string) (string, []Call) {
	if !strings.Contains(text, "[TOOL_CALL]") {
		return text, nil
	}
	var (
		calls []Call
		spans []span
	)
	for _, m := range bracketBlockRe.FindAllStringSubmatchIndex(text, -1) {
		block := strings.TrimSpace(text[m[2]:m[3]])
		call, ok := parseArrowBlock(block)
		if !ok {
			call, ok = parseLooseJSONBlock(block)
		}
		if !ok {
			continue
		}
		calls = append(calls, call)
		spans = append(spans, span{m[0], m[1]})
	}
	if len(calls) == 0 {
		return text, nil
	}
	return removeSpans(text, spans), calls
}

// parseArrowBlock 箭头写法：引号内的值保持字符串，未加引号的纯数字转为 int
func parseArrowBlock(block string) (Call, bool) {
	m := arrowToolRe.FindStringSubmatch(block)
	if m == nil {
		return Call{}, false
	}
	args := map[string]any{}
	if am := arrowArgsRe.FindStringSubmatch(block); am != nil {
		body := am[1]
		for _, idx := range cliArgRe.FindAllStringSubmatchIndex(body, -1) {
			key := body[idx[2]:idx[3]]
			if idx[4] >= 0 {
				args[key] = body[idx[4]:idx[5]]
			} else {
				args[key] = coerceScalar(body[idx[6]:idx[7]])
			}
		}
	}
	return Call{Name: m[1], Arguments: args, Format: FormatBracket}, true
}

// parseLooseJSONBlock 单引号类 JSON：先替换引号后按 JSON 解析，失败则回退正则
func parseLooseJSONBlock(block string) (Call, bool) {
	v, err := decodeJSON(strings.ReplaceAll(block, "'", `"`))
	if err == nil {
		obj, ok := v.(map[string]any)
		if !ok {
			return Call{}, false
		}
		name, _ := obj["name"].(string)
		if name == "" {
			return Call{}, false
		}
		args, _ := obj["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		return Call{Name: name, Arguments: args, Format: FormatBracket}, true
	}

	nm := looseNameRe.FindStringSubmatch(block)
	if nm == nil {
		return Call{}, false
	}
	args := map[string]any{}
	if am := looseArgsRe.FindStringSubmatch(block); am != nil {
		body := am[1]
		for _, idx := range looseKeyValueRe.FindAllStringSubmatchIndex(body, -1) {
			key := body[idx[2]:idx[3]]
			if idx[4] >= 0 {
				args[key] = body[idx[4]:idx[5]]
			} else if idx[6] >= 0 {
				args[key] = coerceScalar(body[idx[6]:idx[7]])
			}
		}
	}
	return Call{Name: nm[1], Arguments: args, Format: FormatBracket}, true
}
