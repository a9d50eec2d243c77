// Copyright 2026 fanjia1024
// OpenTelemetry integration for research runs, tool calls and grading

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "athena-dr"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
	// SampleRatio 根 span 采样比例，(0,1) 之外按全采样处理
	SampleRatio float64
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// InitTracer 创建 OTLP/HTTP exporter 并注册为全局 TracerProvider；调用方负责 Shutdown
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.ExportEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(config.ServiceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartQuerySpan 一个研究问题的根 span
func StartQuerySpan(ctx context.Context, runID string, agentName string) (context.Context, trace.Span) {
	return start(ctx, "research.query",
		attribute.String("run.id", runID),
		attribute.String("agent.name", agentName),
	)
}

// StartStepSpan Agent 单步
func StartStepSpan(ctx context.Context, step int) (context.Context, trace.Span) {
	return start(ctx, "research.step", attribute.Int("step", step))
}

// StartToolSpan 单次工具调用
func StartToolSpan(ctx context.Context, toolName string, callID string) (context.Context, trace.Span) {
	return start(ctx, "tool.invoke",
		attribute.String("tool.name", toolName),
		attribute.String("tool.call_id", callID),
	)
}

// StartItemSpan 批量生成中的一个数据集条目，包含其全部重试
func StartItemSpan(ctx context.Context, itemID string) (context.Context, trace.Span) {
	return start(ctx, "batch.item", attribute.String("item.id", itemID))
}

// StartGradeSpan 一次答案判定；method 为 f1 或 llm
func StartGradeSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return start(ctx, "grader.check", attribute.String("grader.method", method))
}

// RecordError 记录错误到 span（err 为 nil 时无操作）
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
