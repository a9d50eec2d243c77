package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryDuration, QueryTotal, AgentSteps,
		ToolDuration, ToolCallTotal, ToolCacheHits,
		LLMTokensTotal, RateLimitWaitSeconds,
		BatchInFlight, GraderVerdictTotal,
		HallucinatedCitations,
	)
}

// QueryDuration 单个研究问题端到端耗时（秒）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "athena_query_duration_seconds",
		Help:    "研究问题端到端耗时（秒）",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"agent"},
)

// QueryTotal 研究问题总数（按结束状态）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "athena_query_total",
		Help: "研究问题总数（按结束状态）",
	},
	[]string{"status"}, // answered | token_limit_exceeded | step_limit_exceeded | fatal_error
)

// AgentSteps 每个问题消耗的步数
var AgentSteps = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "athena_agent_steps",
		Help:    "每个问题消耗的 Agent 步数",
		Buckets: prometheus.LinearBuckets(1, 2, 12),
	},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "athena_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolCallTotal 工具调用次数（按结果）
var ToolCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "athena_tool_call_total",
		Help: "工具调用次数",
	},
	[]string{"tool", "result"}, // ok | error
)

// ToolCacheHits 工具结果缓存命中次数
var ToolCacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "athena_tool_cache_hits_total",
		Help: "工具结果缓存命中次数",
	},
	[]string{"tool"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "athena_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"provider", "direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "athena_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"kind", "name"}, // kind: llm | tool
)

// BatchInFlight 批量生成中正在执行的问题数
var BatchInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "athena_batch_in_flight",
		Help: "批量生成中正在执行的问题数",
	},
)

// GraderVerdictTotal 拒绝采样评审结果
var GraderVerdictTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "athena_grader_verdict_total",
		Help: "拒绝采样评审结果",
	},
	[]string{"method", "verdict"}, // method: f1 | llm; verdict: correct | incorrect
)

// HallucinatedCitations 答案中引用了未由任何工具产生的片段 ID
var HallucinatedCitations = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "athena_hallucinated_citations_total",
		Help: "答案中无来源的引用数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
