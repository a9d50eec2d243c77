package research

import (
	"regexp"
	"strings"
)

var (
	thinkingRe = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	answerRe   = regexp.MustCompile(`(?s)<answer>(.*?)(?:</answer>|$)`)
)

// StripThinking 去掉 <thinking>...</thinking>（非贪婪，跨行）以及 </think> 之前的推理前缀
func StripThinking(s string) string {
	s = thinkingRe.ReplaceAllString(s, "")
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// HasAnswer 文本是否包含 <answer> 标签
func HasAnswer(s string) bool {
	return strings.Contains(s, "<answer>")
}

// UnwrapAnswer 取第一个 <answer>...</answer> 的内容并去空白；没有答案标签时返回原文（去空白）
func UnwrapAnswer(s string) string {
	m := answerRe.FindStringSubmatch(s)
	if m == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(m[1])
}

// ExtractBoxed 取 \boxed{...} 的内容（到第一个 '}' 为止）；不存在时原样返回。
// 兼容被转义成退格符的 "\b"oxed{。
func ExtractBoxed(s string) string {
	s = strings.ReplaceAll(s, "\x08oxed{", `\boxed{`)
	i := strings.Index(s, `\boxed{`)
	if i < 0 {
		return s
	}
	rest := s[i+len(`\boxed{`):]
	if j := strings.Index(rest, "}"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// PostProcess 最终答案后处理：去推理、拆答案标签、可选提取 \boxed{}
func PostProcess(s string, boxed bool) string {
	out := UnwrapAnswer(StripThinking(s))
	if boxed {
		out = ExtractBoxed(out)
	}
	return out
}
