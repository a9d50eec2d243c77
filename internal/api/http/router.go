package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"github.com/AthenaAgent/athena-dr/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	audit      *middleware.AuditMiddleware
	jwt        *jwt.HertzJWTMiddleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT：/api/login 签发，/api/research 与 /api/results 需要认证
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) {
	r.jwt = j
}

// SetAudit 启用访问审计日志
func (r *Router) SetAudit(a *middleware.AuditMiddleware) {
	r.audit = a
}

// Build 创建 Hertz 实例并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	if r.audit != nil {
		h.Use(r.audit.AuditAccess())
	}
	h.Use(r.middleware.CORS())
	r.register(h)
	return h
}

func (r *Router) register(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/tools", r.handler.ListTools)

	var auth []app.HandlerFunc
	if r.jwt != nil {
		api.POST("/login", r.jwt.LoginHandler)
		api.GET("/refresh_token", r.jwt.RefreshHandler)
		auth = append(auth, r.jwt.MiddlewareFunc())
	}
	api.POST("/research", append(auth, r.handler.Research)...)
	api.GET("/results", append(auth, r.handler.ListResults)...)
	api.GET("/results/:id", append(auth, r.handler.GetResult)...)
}
