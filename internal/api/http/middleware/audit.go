// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"github.com/AthenaAgent/athena-dr/pkg/log"
)

// AuditMiddleware 访问审计：每个请求一条结构化日志
type AuditMiddleware struct {
	logger *log.Logger
}

// NewAuditMiddleware 创建审计中间件
func NewAuditMiddleware(logger *log.Logger) *AuditMiddleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditMiddleware{logger: logger}
}

// AuditAccess 记录 API 访问
func (a *AuditMiddleware) AuditAccess() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		path := string(c.Path())
		resourceType, resourceID := extractResource(path)
		status := c.Response.StatusCode()
		a.logger.Info("api access",
			"user", userFromClaims(ctx, c),
			"action", determineAction(string(c.Method()), path),
			"resource_type", resourceType,
			"resource_id", resourceID,
			"status", status,
			"success", status < 400,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// userFromClaims JWT 未启用或未登录时为空
func userFromClaims(ctx context.Context, c *app.RequestContext) string {
	if _, ok := c.Get("JWT_PAYLOAD"); !ok {
		return ""
	}
	if id, ok := jwt.ExtractClaims(ctx, c)[IdentityKey].(string); ok {
		return id
	}
	return ""
}

// determineAction 根据 HTTP 方法和路径确定操作类型
func determineAction(method string, path string) string {
	switch {
	case strings.HasPrefix(path, "/api/research") && method == "POST":
		return "run_research"
	case strings.HasPrefix(path, "/api/results"):
		return "view_result"
	case strings.HasPrefix(path, "/api/tools"):
		return "list_tools"
	case strings.HasPrefix(path, "/api/login"), strings.HasPrefix(path, "/api/refresh_token"):
		return "login"
	}
	return "unknown"
}

// extractResource 从路径提取资源类型和 ID
func extractResource(path string) (resourceType string, resourceID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[1] == "results" {
		// /api/results/:id
		return "result", parts[2]
	}
	if len(parts) >= 2 {
		return strings.TrimSuffix(parts[1], "s"), ""
	}
	return "unknown", ""
}
