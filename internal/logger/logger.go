// Package logger configures slog JSON output and carries a per-evaluation
// trace ID through context so every gate decision for one candle can be
// correlated across log lines.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type traceKey struct{}

// Init builds the service logger: JSON to stdout, tagged with the service
// name, and installed as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("service", service))
	slog.SetDefault(log)
	return log
}

// ParseLevel maps a config string to a slog level. Unknown values get Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GenerateTraceID derives the trace ID for one candle evaluation from the
// candle's identity, "{symbol}-{unixNano}", so IDs sort by candle time.
func GenerateTraceID(symbol string, ts time.Time) string {
	return symbol + "-" + strconv.FormatInt(ts.UnixNano(), 10)
}

// WithTraceID attaches a trace ID to the context.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace ID carried by ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// LogWithTrace renders the context's trace ID as slog attributes, nil when
// the context carries none.
func LogWithTrace(ctx context.Context) []any {
	id := TraceID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("trace_id", id)}
}
