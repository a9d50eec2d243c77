package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
)

// ResearchRequest POST /api/research 请求体
type ResearchRequest struct {
	Question   string `json:"question"`
	AnswerType string `json:"answer_type,omitempty"` // short | long | exact
	Gold       string `json:"gold,omitempty"`        // 提供时走拒绝采样重试
}

// ResearchResponse 预算耗尽时 Result 为部分结果，Error 给出原因
type ResearchResponse struct {
	Result *trace.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// ResearchService 运行一次研究（由 app 层注入）
type ResearchService interface {
	Research(ctx context.Context, req ResearchRequest) (*trace.Result, error)
}

// ToolCatalog 列出可用工具
type ToolCatalog interface {
	Specs() ([]llm.ToolSpec, error)
}

// RateLimitReporter 提供限流器状态（工具注册表、模型注册表实现）
type RateLimitReporter interface {
	RateLimitStats() map[string]map[string]interface{}
}

// Handler HTTP 处理器
type Handler struct {
	research ResearchService
	results  result.Store
	tools    ToolCatalog
	limits   map[string]RateLimitReporter
	timeout  time.Duration
}

// NewHandler 创建新的 HTTP 处理器；依赖为 nil 时对应接口返回 503
func NewHandler(research ResearchService, results result.Store, tools ToolCatalog) *Handler {
	return &Handler{research: research, results: results, tools: tools}
}

// SetTimeout 单次研究请求超时，<= 0 不限制
func (h *Handler) SetTimeout(d time.Duration) {
	h.timeout = d
}

// SetRateLimits 健康检查中附带限流状态，key 为分组名（如 tools、llm）
func (h *Handler) SetRateLimits(name string, r RateLimitReporter) {
	if r == nil {
		return
	}
	if h.limits == nil {
		h.limits = make(map[string]RateLimitReporter)
	}
	h.limits[name] = r
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	body := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "athena-dr",
	}
	if len(h.limits) > 0 {
		limits := make(map[string]interface{}, len(h.limits))
		for name, r := range h.limits {
			limits[name] = r.RateLimitStats()
		}
		body["rate_limits"] = limits
	}
	c.JSON(consts.StatusOK, body)
}

// Research 同步运行一个研究问题
// POST /api/research
func (h *Handler) Research(ctx context.Context, c *app.RequestContext) {
	if h.research == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "research service not configured"})
		return
	}
	var req ResearchRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.research.Research(ctx, req)
	if res == nil {
		status := consts.StatusInternalServerError
		switch {
		case err == nil:
			err = stderrors.New("no result")
		case stderrors.Is(err, errors.ErrInvalidArg):
			status = consts.StatusBadRequest
		case stderrors.Is(err, errors.ErrFatal):
			status = consts.StatusBadGateway
		case stderrors.Is(err, context.DeadlineExceeded):
			status = consts.StatusGatewayTimeout
		}
		hlog.CtxErrorf(ctx, "research failed: %v", err)
		c.JSON(status, ResearchResponse{Error: err.Error()})
		return
	}
	if h.results != nil {
		if serr := h.results.Save(ctx, res); serr != nil {
			hlog.CtxWarnf(ctx, "save result %s: %v", res.ID, serr)
		}
	}
	resp := ResearchResponse{Result: res}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(consts.StatusOK, resp)
}

// GetResult 获取已保存的结果
// GET /api/results/:id
func (h *Handler) GetResult(ctx context.Context, c *app.RequestContext) {
	if h.results == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "result store not configured"})
		return
	}
	id := c.Param("id")
	res, err := h.results.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "result not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, res)
}

// ListResults 最近的结果
// GET /api/results?limit=20
func (h *Handler) ListResults(ctx context.Context, c *app.RequestContext) {
	if h.results == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "result store not configured"})
		return
	}
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	list, err := h.results.List(ctx, limit)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*trace.Result{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"results": list, "total": len(list)})
}

// ListTools 已注册工具及其参数 Schema
// GET /api/tools
func (h *Handler) ListTools(ctx context.Context, c *app.RequestContext) {
	if h.tools == nil {
		c.JSON(consts.StatusOK, map[string]interface{}{"tools": []llm.ToolSpec{}})
		return
	}
	specs, err := h.tools.Specs()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"tools": specs})
}

// Metrics Prometheus 文本格式
// GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.String(consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
