package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/api/http/middleware"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

type stubResearch struct {
	res *trace.Result
	err error
	got ResearchRequest
}

func (s *stubResearch) Research(_ context.Context, req ResearchRequest) (*trace.Result, error) {
	s.got = req
	return s.res, s.err
}

type stubCatalog struct{}

func (stubCatalog) Specs() ([]llm.ToolSpec, error) {
	return []llm.ToolSpec{{Name: "serper_search_tool", Description: "web search", Parameters: json.RawMessage(`{"type":"object"}`)}}, nil
}

func buildServer(t *testing.T, research ResearchService, store result.Store) *server.Hertz {
	t.Helper()
	r := NewRouter(NewHandler(research, store, stubCatalog{}), middleware.NewMiddleware())
	return r.Build(":0")
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: strings.NewReader(s), Len: len(s)}
}

func emptyBody() *ut.Body {
	return &ut.Body{Body: bytes.NewReader(nil), Len: 0}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func TestHealthCheck(t *testing.T) {
	h := buildServer(t, nil, nil)
	w := ut.PerformRequest(h.Engine, "GET", "/api/health", emptyBody())
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Errorf("HealthCheck status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("ok")) {
		t.Errorf("HealthCheck body: %s", resp.Body())
	}
}

type stubLimits map[string]map[string]interface{}

func (s stubLimits) RateLimitStats() map[string]map[string]interface{} { return s }

func TestHealthCheck_RateLimits(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	handler.SetRateLimits("tools", stubLimits{"serper_search_tool": {"qps": 5.0, "max_concurrent": 2}})
	handler.SetRateLimits("llm", nil)
	h := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(h.Engine, "GET", "/api/health", emptyBody())
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("HealthCheck status: got %d", resp.StatusCode())
	}
	var body struct {
		Status     string                                       `json:"status"`
		RateLimits map[string]map[string]map[string]interface{} `json:"rate_limits"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body.RateLimits["llm"]; ok {
		t.Errorf("nil reporter should be skipped: %v", body.RateLimits)
	}
	if got := body.RateLimits["tools"]["serper_search_tool"]["qps"]; got != 5.0 {
		t.Errorf("tools qps = %v", got)
	}
}

func TestResearch_SavesResult(t *testing.T) {
	store := result.NewMemoryStore()
	svc := &stubResearch{res: &trace.Result{ID: "run-1", Question: "q", Answer: "Paris", Status: "answered"}}
	h := buildServer(t, svc, store)

	w := ut.PerformRequest(h.Engine, "POST", "/api/research", jsonBody(`{"question":"  q  ","answer_type":"exact"}`), jsonHeader)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("status = %d, body=%s", got, w.Result().Body())
	}
	if svc.got.Question != "q" || svc.got.AnswerType != "exact" {
		t.Errorf("request passed to service: %+v", svc.got)
	}
	var resp ResearchResponse
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result == nil || resp.Result.Answer != "Paris" || resp.Error != "" {
		t.Errorf("response: %+v", resp)
	}

	w = ut.PerformRequest(h.Engine, "GET", "/api/results/run-1", emptyBody())
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET result status = %d", got)
	}
	w = ut.PerformRequest(h.Engine, "GET", "/api/results/nope", emptyBody())
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("GET missing result status = %d, want 404", got)
	}
	w = ut.PerformRequest(h.Engine, "GET", "/api/results?limit=5", emptyBody())
	if !bytes.Contains(w.Result().Body(), []byte(`"total":1`)) {
		t.Errorf("list body: %s", w.Result().Body())
	}
}

func TestResearch_Validation(t *testing.T) {
	h := buildServer(t, &stubResearch{}, nil)
	w := ut.PerformRequest(h.Engine, "POST", "/api/research", jsonBody(`{"question":""}`), jsonHeader)
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("status = %d, want 400", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"error":"question is required"`)) {
		t.Fatalf("body: %s", w.Result().Body())
	}
}

func TestResearch_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		svc  *stubResearch
		want int
	}{
		{"fatal", &stubResearch{err: errors.Fatal(stderrors.New("upstream 503"))}, 502},
		{"budget returns partial", &stubResearch{res: &trace.Result{ID: "p"}, err: errors.ErrTokenLimitExceeded}, 200},
		{"timeout", &stubResearch{err: context.DeadlineExceeded}, 504},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := buildServer(t, tc.svc, nil)
			w := ut.PerformRequest(h.Engine, "POST", "/api/research", jsonBody(`{"question":"q"}`), jsonHeader)
			if got := w.Result().StatusCode(); got != tc.want {
				t.Fatalf("status = %d, want %d (%s)", got, tc.want, w.Result().Body())
			}
			if !bytes.Contains(w.Result().Body(), []byte(`"error"`)) {
				t.Errorf("body missing error: %s", w.Result().Body())
			}
		})
	}
}

func TestListToolsAndMetrics(t *testing.T) {
	h := buildServer(t, nil, nil)
	w := ut.PerformRequest(h.Engine, "GET", "/api/tools", emptyBody())
	if !bytes.Contains(w.Result().Body(), []byte("serper_search_tool")) {
		t.Errorf("tools body: %s", w.Result().Body())
	}
	w = ut.PerformRequest(h.Engine, "GET", "/metrics", emptyBody())
	if got := w.Result().StatusCode(); got != 200 {
		t.Errorf("metrics status = %d", got)
	}
}

func TestResearch_RequiresJWTWhenEnabled(t *testing.T) {
	jwtMw, err := middleware.NewJWTAuth([]byte("secret"), time.Hour, time.Hour, map[string]string{"alice": "pw"})
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	svc := &stubResearch{res: &trace.Result{ID: "r"}}
	r := NewRouter(NewHandler(svc, nil, nil), middleware.NewMiddleware())
	r.SetJWT(jwtMw)
	r.SetAudit(middleware.NewAuditMiddleware(nil))
	h := r.Build(":0")

	w := ut.PerformRequest(h.Engine, "POST", "/api/research", jsonBody(`{"question":"q"}`), jsonHeader)
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("unauthenticated status = %d, want 401", got)
	}

	w = ut.PerformRequest(h.Engine, "POST", "/api/login", jsonBody(`{"username":"alice","password":"wrong"}`), jsonHeader)
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("bad login status = %d, want 401", got)
	}

	w = ut.PerformRequest(h.Engine, "POST", "/api/login", jsonBody(`{"username":"alice","password":"pw"}`), jsonHeader)
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Result().Body(), &login); err != nil || login.Token == "" {
		t.Fatalf("login: status=%d body=%s", w.Result().StatusCode(), w.Result().Body())
	}

	w = ut.PerformRequest(h.Engine, "POST", "/api/research", jsonBody(`{"question":"q"}`), jsonHeader,
		ut.Header{Key: "Authorization", Value: "Bearer " + login.Token})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("authenticated status = %d, body=%s", got, w.Result().Body())
	}
}
