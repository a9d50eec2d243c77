package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// span 文本中的一个已解析区间 [start, end)
type span struct{ start, end int }

// removeSpans 删除升序且不重叠的区间；有删除时对结果做 TrimSpace
func removeSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.start])
		prev = s.end
	}
	b.WriteString(text[prev:])
	return strings.TrimSpace(b.String())
}

// isDigits 非空且全部为 ASCII 数字
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// coerceScalar 纯数字字符串转为 int，其余保持字符串
func coerceScalar(s string) any {
	if !isDigits(s) {
		return s
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return n
}

// decodeJSON 解码 JSON 并保留数值类型：整数为 int，其余为 float64
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// 与 json.loads 一致：值之后不允许再有非空白内容
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value at offset %d", dec.InputOffset())
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := strconv.Atoi(t.String()); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeJSON(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeJSON(vv)
		}
		return t
	default:
		return v
	}
}

// pair 形如 <name>value</name> 的一对标签
type pair struct {
	name  string
	value string
}

// scanPairs 顺序扫描同名成对标签（开标签与第一个同名闭标签配对），扫描语义等价于
// 带反向引用的惰性正则 <(name)>(.*?)</\1>。
//   validName 判断标签名是否合法；multiline=false 时值不得跨行。
func scanPairs(s string, validName func(string) bool, multiline bool) []pair {
	var out []pair
	i := 0
	for i < len(s) {
		lt := strings.IndexByte(s[i:], '<')
		if lt < 0 {
			break
		}
		start := i + lt
		name, valStart, ok := openTag(s, start, validName)
		if !ok {
			i = start + 1
			continue
		}
		closing := "</" + name + ">"
		end := strings.Index(s[valStart:], closing)
		if end < 0 || (!multiline && strings.Contains(s[valStart:valStart+end], "\n")) {
			i = start + 1
			continue
		}
		out = append(out, pair{name: name, value: s[valStart : valStart+end]})
		i = valStart + end + len(closing)
	}
	return out
}

// openTag 解析 s[start] 处的开标签，返回标签名与值起始位置
func openTag(s string, start int, validName func(string) bool) (string, int, bool) {
	if start >= len(s) || s[start] != '<' {
		return "", 0, false
	}
	rest := s[start+1:]
	n := strings.IndexAny(rest, "/>")
	if n <= 0 || rest[n] != '>' {
		return "", 0, false
	}
	name := rest[:n]
	if !validName(name) {
		return "", 0, false
	}
	return name, start + 1 + n + 1, true
}

// anyTagName 对应 [^/>]+（openTag 已保证不含 '/' 与 '>'）
func anyTagName(name string) bool { return name != "" }

// identTagName 对应 [a-zA-Z_][a-zA-Z0-9_]*
func identTagName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// objectMatch 一个以 JSON 对象为主体的调用块
type objectMatch struct {
	start, end int    // 整个块在原文中的区间
	body       string // JSON 对象文本
}

// locateObjects 对 marker（以 '{' 结尾）的每处匹配，先按括号配对取完整 JSON 对象，
// suffix 非 nil 时要求对象后紧跟 suffix（需以 ^ 锚定）；配对失败时回退为 fallback 正则在同一位置的匹配。
func locateObjects(text string, marker, suffix, fallback *regexp.Regexp, fallbackBody func(text string, loc []int) string) []objectMatch {
	var (
		out  []objectMatch
		last int
	)
	for _, loc := range marker.FindAllStringIndex(text, -1) {
		if loc[0] < last {
			continue
		}
		brace := loc[1] - 1
		if end := balancedEnd(text, brace); end > 0 {
			blockEnd := end
			if suffix != nil {
				if sl := suffix.FindStringIndex(text[end:]); sl != nil {
					blockEnd = end + sl[1]
				} else {
					blockEnd = -1
				}
			}
			if blockEnd > 0 {
				out = append(out, objectMatch{start: loc[0], end: blockEnd, body: text[brace:end]})
				last = blockEnd
				continue
			}
		}
		fl := fallback.FindStringSubmatchIndex(text[loc[0]:])
		if fl == nil || fl[0] != 0 {
			continue
		}
		for i := range fl {
			if fl[i] >= 0 {
				fl[i] += loc[0]
			}
		}
		out = append(out, objectMatch{start: fl[0], end: fl[1], body: fallbackBody(text, fl)})
		last = fl[1]
	}
	return out
}

// balancedEnd 返回 s[i] 处 '{' 对应 '}' 之后的位置（跳过 JSON 字符串内容），不配对时返回 -1
func balancedEnd(s string, i int) int {
	var (
		depth int
		inStr bool
		esc   bool
	)
	for j := i; j < len(s); j++ {
		c := s[j]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return -1
}
