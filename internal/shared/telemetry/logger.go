package telemetry

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// stdout resolves os.Stdout on every write so tests can swap it.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

// spanContextHandler adds trace and span ids when the context carries a span.
type spanContextHandler struct {
	slog.Handler
}

func (h spanContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h spanContextHandler) WithGroup(name string) slog.Handler {
	return spanContextHandler{Handler: h.Handler.WithGroup(name)}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			switch {
			case level >= slog.LevelError:
				a.Value = slog.StringValue("error")
			case level >= slog.LevelWarn:
				a.Value = slog.StringValue("warn")
			default:
				a.Value = slog.StringValue("info")
			}
		}
	}
	return a
}

// Logger returns the process-wide structured logger.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		handler := slog.NewJSONHandler(stdout{}, &slog.HandlerOptions{ReplaceAttr: replaceAttr})
		logger = slog.New(spanContextHandler{Handler: handler})
	})
	return logger
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	InfoCtx(context.Background(), msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	ErrorCtx(context.Background(), msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	WarnCtx(context.Background(), msg, fields)
}

// WarnCtx is Warn with trace correlation from ctx.
func WarnCtx(ctx context.Context, msg string, fields map[string]any) {
	Logger().LogAttrs(ctx, slog.LevelWarn, msg, attrs(fields)...)
}

// InfoCtx is Info with trace correlation from ctx.
func InfoCtx(ctx context.Context, msg string, fields map[string]any) {
	Logger().LogAttrs(ctx, slog.LevelInfo, msg, attrs(fields)...)
}

// ErrorCtx is Error with trace correlation from ctx.
func ErrorCtx(ctx context.Context, msg string, fields map[string]any) {
	Logger().LogAttrs(ctx, slog.LevelError, msg, attrs(fields)...)
}

func attrs(fields map[string]any) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}
