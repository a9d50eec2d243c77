package toolcall

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"
)

var (
	tagBlockRe = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	tagNameRe  = regexp.MustCompile(`<tool_name>(.*?)</tool_name>`)
)

// TagParser 解析 <tool_call><tool_name>x</tool_name><arg>v</arg></tool_call>
type TagParser struct{}

func (TagParser) Format() string { return FormatTag }

func (TagParser) Parse(text string) (string, []Call) {
	if !strings.Contains(text, "<tool_call>") {
		return text, nil
	}
	var (
		calls []Call
		spans []span
	)
	for _, m := range tagBlockRe.FindAllStringSubmatchIndex(text, -1) {
		block := strings.TrimSpace(text[m[2]:m[3]])
		call, ok, err := parseTagBlockXML(block)
		if errors.Is(err, errMalformedXML) {
			call, ok = parseTagBlockRegex(block)
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

var errMalformedXML = errors.New("malformed tool_call markup")

// parseTagBlockXML 以合成根节点包裹后按 XML 解析；根下直接子元素中 tool_name 为工具名，
// 其余带文本的子元素为参数
func parseTagBlockXML(block string) (Call, bool, error) {
	dec := xml.NewDecoder(strings.NewReader("<root>" + block + "</root>"))
	dec.Strict = true

	var (
		name     string
		seenName bool
		args     = map[string]any{}
		depth    int
		current  string
		text     strings.Builder
		sawChild bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Call{}, false, errMalformedXML
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
				text.Reset()
				sawChild = false
			} else if depth > 2 {
				sawChild = true
			}
		case xml.CharData:
			// 只取子元素第一个嵌套元素之前的文本
			if depth == 2 && !sawChild {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				val := strings.TrimSpace(text.String())
				raw := text.Len() > 0
				if current == "tool_name" {
					if !seenName {
						name, seenName = val, true
					}
				} else if raw {
					args[current] = coerceScalar(val)
				}
			}
			depth--
		}
	}
	if name == "" {
		return Call{}, false, nil
	}
	return Call{Name: name, Arguments: args, Format: FormatTag}, true, nil
}

// parseTagBlockRegex 标记不合法（如未转义的 &）时的回退：正则提取 tool_name 与同名成对标签
func parseTagBlockRegex(block string) (Call, bool) {
	m := tagNameRe.FindStringSubmatch(block)
	if m == nil {
		return Call{}, false
	}
	args := map[string]any{}
	for _, p := range scanPairs(block, anyTagName, false) {
		if p.name == "tool_name" {
			continue
		}
		args[p.name] = coerceScalar(strings.TrimSpace(p.value))
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Call{}, false
	}
	return Call{Name: name, Arguments: args, Format: FormatTag}, true
}
