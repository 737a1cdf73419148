// Package logger 基于 log/slog 的结构化日志，自动附带 context 中的追踪与导入标识
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// ContextKey context 中日志字段的键
type ContextKey string

// 会被附加到日志的 context 字段，按此顺序输出
const (
	TraceIDKey      ContextKey = "trace_id"
	SpanIDKey       ContextKey = "span_id"
	RequestIDKey    ContextKey = "request_id"
	StoryIDKey      ContextKey = "story_id"
	StoryWorldIDKey ContextKey = "story_world_id"
	ImportIDKey     ContextKey = "import_id"
)

var contextKeys = [...]ContextKey{
	TraceIDKey,
	SpanIDKey,
	RequestIDKey,
	StoryIDKey,
	StoryWorldIDKey,
	ImportIDKey,
}

var defaultLogger atomic.Pointer[slog.Logger]

// Init 输出到 stdout
func Init(level, format string) {
	InitWithWriter(level, format, os.Stdout)
}

// InitWithWriter 输出到 w；format 为 json 时使用 JSON，否则为文本
func InitWithWriter(level, format string, w io.Writer) {
	l := New(level, format, w)
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// New 创建独立的日志器，不修改全局默认值
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level), AddSource: true}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(contextHandler{h})
}

// ParseLevel 无法识别的级别按 info 处理
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Default 全局日志器，未初始化时为 info/json
func Default() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	Init("info", "json")
	return defaultLogger.Load()
}

// contextHandler 在 Handle 时读取 ctx 中的字段
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		for _, key := range contextKeys {
			if v := ctx.Value(key); v != nil {
				r.AddAttrs(slog.Any(string(key), v))
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// FromContext 把 ctx 中的字段固定到返回的日志器上，适合在循环或长流程中复用
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}
	var args []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			args = append(args, string(key), v)
		}
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

// WithContext 在 ctx 中记录一个日志字段
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// Debug 记录 DEBUG 日志
func Debug(ctx context.Context, msg string, args ...any) {
	Default().DebugContext(ctx, msg, args...)
}

// Info 记录 INFO 日志
func Info(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

// Warn 记录 WARN 日志
func Warn(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

// Error 记录 ERROR 日志，err 以 error 字段输出
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Default().ErrorContext(ctx, msg, args...)
}

// Fatal 记录错误后以状态码 1 退出
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
