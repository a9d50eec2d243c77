package citation

import "sync"

// UnknownTool 被引用但从未由工具产生的 ID（模型幻觉引用）
const UnknownTool = "unknown"

// Source 片段 ID 首次出现的工具调用
type Source struct {
	Tool string `json:"tool"`
	Step int    `json:"step"`
}

// Usage 最终答案中实际出现的一条引用；Step 为 nil 表示来源未知
type Usage struct {
	ID   string `json:"id"`
	Tool string `json:"tool"`
	Step *int   `json:"step"`
}

// Hallucinated 引用无法解析到任何工具输出
func (u Usage) Hallucinated() bool { return u.Step == nil }

// Provenance snippet_id -> Source，先到先得
type Provenance struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewProvenance 创建空的来源表
func NewProvenance() *Provenance {
	return &Provenance{sources: make(map[string]Source)}
}

// Record 登记一步中某个工具输出的全部 ID；已存在的 ID 保留最初来源
func (p *Provenance) Record(ids []string, tool string, step int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if _, ok := p.sources[id]; ok {
			continue
		}
		p.sources[id] = Source{Tool: tool, Step: step}
	}
}

// Lookup 查询 ID 来源
func (p *Provenance) Lookup(id string) (Source, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sources[id]
	return s, ok
}

// Len 已登记 ID 数
func (p *Provenance) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sources)
}

// Resolve 将答案中的引用解析为 Usage；未知 ID 标记为 tool=unknown, step=nil 而不是丢弃
func (p *Provenance) Resolve(cited []string) []Usage {
	out := make([]Usage, 0, len(cited))
	for _, id := range cited {
		if s, ok := p.Lookup(id); ok {
			step := s.Step
			out = append(out, Usage{ID: id, Tool: s.Tool, Step: &step})
			continue
		}
		out = append(out, Usage{ID: id, Tool: UnknownTool})
	}
	return out
}

// CountHallucinated 统计来源未知的引用数
func CountHallucinated(usages []Usage) int {
	n := 0
	for _, u := range usages {
		if u.Hallucinated() {
			n++
		}
	}
	return n
}
