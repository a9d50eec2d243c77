package citation

import (
	"regexp"
	"strings"
)

var (
	bracketTokenRe = regexp.MustCompile(`\[([^\[\]\s]+)\]`)
	urlLineRe      = regexp.MustCompile(`URL:\s*(https?://[^\s<>"\]]+)`)
	citeTagRe      = regexp.MustCompile(`<cite\s+id\s*=\s*["']([^"']*)["']\s*>`)
)

// Observation 单条工具输出中出现的片段 ID 与 URL（各自去重，保持首次出现顺序）
type Observation struct {
	SnippetIDs []string `json:"snippet_ids"`
	URLs       []string `json:"urls"`
}

// ExtractObservation 扫描工具输出：[...] 中以已登记前缀开头的记为片段 ID（排除 markdown 链接等），
// "URL: http(s)://..." 记为来源链接
func (r *Registry) ExtractObservation(text string) Observation {
	var obs Observation
	seenID := map[string]struct{}{}
	for _, m := range bracketTokenRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if !r.Match(id) {
			continue
		}
		if _, ok := seenID[id]; ok {
			continue
		}
		seenID[id] = struct{}{}
		obs.SnippetIDs = append(obs.SnippetIDs, id)
	}
	seenURL := map[string]struct{}{}
	for _, m := range urlLineRe.FindAllStringSubmatch(text, -1) {
		u := m[1]
		if _, ok := seenURL[u]; ok {
			continue
		}
		seenURL[u] = struct{}{}
		obs.URLs = append(obs.URLs, u)
	}
	return obs
}

// ExtractCited 返回答案中 <cite id="a, b"> 引用的全部 ID：按逗号拆分并去空白，去重后保持出现顺序
func ExtractCited(answer string) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	for _, m := range citeTagRe.FindAllStringSubmatch(answer, -1) {
		for _, id := range strings.Split(m[1], ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
