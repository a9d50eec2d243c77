// Package worker 批量生成：读取 JSONL 数据集，并发运行研究 Agent，结果追加写入 JSONL
package worker

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AthenaAgent/athena-dr/internal/app"
	"github.com/AthenaAgent/athena-dr/internal/batch"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/pkg/config"
	"github.com/AthenaAgent/athena-dr/pkg/tracing"
)

// App Worker 应用
type App struct {
	bootstrap *app.Bootstrap
	output    result.Store
	tracer    *sdktrace.TracerProvider
}

// NewApp 创建 Worker；batch.output 为空时结果写入 storage.result 配置的存储
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	a := &App{bootstrap: bootstrap, output: bootstrap.Results}
	if cfg.Batch.Output != "" {
		out, err := result.NewJSONLStore(cfg.Batch.Output)
		if err != nil {
			return nil, fmt.Errorf("打开输出文件失败: %w", err)
		}
		a.output = out
	}
	if tc := cfg.Monitoring.Tracing; tc.Enable && tc.ExportEndpoint != "" {
		name := tc.ServiceName
		if name == "" {
			name = "athena-worker"
		}
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    name,
			ExportEndpoint: tc.ExportEndpoint,
			Insecure:       tc.Insecure,
			SampleRatio:    tc.SampleRatio,
		})
		if err != nil {
			bootstrap.Logger.Warn("链路追踪初始化失败", "error", err)
		} else {
			a.tracer = tp
		}
	}
	return a, nil
}

// Run 处理 batch.input 中的全部问题；ctx 取消后不再启动新问题
func (a *App) Run(ctx context.Context) (batch.Summary, error) {
	cfg := a.bootstrap.Config
	if cfg.Batch.Input == "" {
		return batch.Summary{}, fmt.Errorf("batch.input 未配置")
	}
	items, err := batch.ReadItemsFile(cfg.Batch.Input)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("读取数据集失败: %w", err)
	}
	return a.runner(cfg).Run(ctx, items)
}

func (a *App) runner(cfg *config.Config) *batch.Runner {
	opts := []batch.Option{
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithMaxExamples(cfg.Batch.MaxExamples),
		batch.WithLogger(a.bootstrap.Logger.With("component", "batch")),
	}
	if cfg.Batch.Retry {
		opts = append(opts, batch.WithRetrier(a.bootstrap.NewRetrier("")))
	}
	return batch.NewRunner(a.bootstrap.AgentFactory(""), a.output, opts...)
}

// Shutdown 刷新追踪数据并关闭存储
func (a *App) Shutdown(ctx context.Context) error {
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	if a.output != a.bootstrap.Results {
		_ = a.output.Close()
	}
	a.bootstrap.Close()
	return nil
}
