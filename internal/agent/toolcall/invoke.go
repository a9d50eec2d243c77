package toolcall

import (
	"regexp"
	"strings"
)

var invokeBlockRe = regexp.MustCompile(`(?s)<invoke>(.*?)</invoke>`)

// InvokeParser 解析 <invoke><tool_name><arg>v</arg></tool_name></invoke>：
// 外层唯一子元素的标签名即工具名，其子元素为参数
type InvokeParser struct{}

func (InvokeParser) Format() string { return FormatInvoke }

func (InvokeParser) Parse(text string) (string, []Call) {
	if !strings.Contains(text, "<invoke>") {
		return text, nil
	}
	var (
		calls []Call
		spans []span
	)
	for _, m := range invokeBlockRe.FindAllStringSubmatchIndex(text, -1) {
		call, ok := parseInvokeBlock(text[m[2]:m[3]])
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

func parseInvokeBlock(block string) (Call, bool) {
	// 模型常输出字面量 "\n"
	block = strings.ReplaceAll(strings.TrimSpace(block), `\n`, "\n")

	name, valStart, ok := openTag(block, 0, identTagName)
	if !ok {
		return Call{}, false
	}
	end := strings.Index(block[valStart:], "</"+name+">")
	if end < 0 {
		return Call{}, false
	}
	inner := block[valStart : valStart+end]

	args := map[string]any{}
	for _, p := range scanPairs(inner, identTagName, true) {
		v := strings.TrimSpace(p.value)
		if v == "" {
			continue
		}
		args[p.name] = coerceScalar(v)
	}
	return Call{Name: name, Arguments: args, Format: FormatInvoke}, true
}
