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

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apigrpc "github.com/AthenaAgent/athena-dr/internal/api/grpc"
	"github.com/AthenaAgent/athena-dr/internal/api/http"
	"github.com/AthenaAgent/athena-dr/internal/api/http/middleware"
	"github.com/AthenaAgent/athena-dr/internal/app"
	"github.com/AthenaAgent/athena-dr/pkg/config"
	"github.com/AthenaAgent/athena-dr/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选的 gRPC 健康检查）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *apigrpc.Server
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	handler := http.NewHandler(bootstrap, bootstrap.Results, bootstrap.Tools)
	handler.SetTimeout(config.ParseDuration(cfg.API.Timeout, 10*time.Minute))
	handler.SetRateLimits("tools", bootstrap.Tools)
	handler.SetRateLimits("llm", bootstrap.Models)

	router := http.NewRouter(handler, middleware.NewMiddleware())
	router.SetAudit(middleware.NewAuditMiddleware(bootstrap.Logger.With("component", "audit")))

	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := config.ParseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := config.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh, cfg.API.Middleware.Users)
		if err != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用")
		}
	}

	a := &App{bootstrap: bootstrap, router: router}
	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs := apigrpc.NewServer(bootstrap.Tools.Names())
		if err := gs.Start(cfg.API.Grpc.Port); err != nil {
			bootstrap.Logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			a.grpcServer = gs
			bootstrap.Logger.Info("gRPC 健康检查服务已启动", "port", cfg.API.Grpc.Port)
		}
	}
	return a, nil
}

// hertzOutput Hertz 日志输出，与 log.file 对齐
func hertzOutput(cfg config.LogConfig) (io.Writer, error) {
	if cfg.File == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"；阻塞直到服务退出
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志级别对齐
	output, err := hertzOutput(cfg.Log)
	if err != nil {
		return err
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	tc := cfg.Monitoring.Tracing
	exportEndpoint := tc.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tc.Enable && exportEndpoint != "" {
		serviceName := tc.ServiceName
		if serviceName == "" {
			serviceName = "athena-api"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tc.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}
	a.hertz.Spin()
	return nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	var err error
	if a.hertz != nil {
		err = a.hertz.Shutdown(ctx)
	}
	a.bootstrap.Close()
	return err
}
