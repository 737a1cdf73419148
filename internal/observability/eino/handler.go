package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-graph-api/pkg/metrics"
	"novel-graph-api/pkg/tracer"
)

type startTimeKey struct{}

// newToolCallbackHandler 工具调用回调：次数、耗时与追踪
func newToolCallbackHandler() *cbtemplate.ToolCallbackHandler {
	return &cbtemplate.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{attribute.String("tool.name", toolName(info))}
			if input != nil {
				attrs = append(attrs, attribute.Int("tool.arguments_bytes", len(input.ArgumentsInJSON)))
			}
			ctx, _ = tracer.Start(ctx, "mcp.tool."+toolName(info), trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			name := toolName(info)
			metrics.ToolCallsTotal.WithLabelValues(name, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.ToolCallDuration.WithLabelValues(name).Observe(d)
			}
			span := trace.SpanFromContext(ctx)
			if output != nil {
				span.SetAttributes(attribute.Int("tool.response_bytes", len(output.Response)))
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			name := toolName(info)
			metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.ToolCallDuration.WithLabelValues(name).Observe(d)
			}
			span := trace.SpanFromContext(ctx)
			tracer.RecordError(span, err)
			span.End()
			return ctx
		},
	}
}

func toolName(info *einocb.RunInfo) string {
	if info == nil || info.Name == "" {
		return "unknown"
	}
	return info.Name
}

// elapsedSeconds OnStart 记录的开始时间到现在的秒数，取不到时为 0
func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}
