package utils

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const requestIDCtxKey ctxKey = "request_id"

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// SetLogger replaces the logger used by LogEvent. Call it once at startup.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger
}

// WithRequestID stores the request id on ctx so service logs can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, strings.TrimSpace(requestID))
}

// RequestIDFrom returns the request id stored on ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent prints a standardized line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(ctx context.Context, module, action, message string, attrs ...any) {
	logAt(ctx, slog.LevelInfo, module, action, message, attrs...)
}

// LogWarn is LogEvent for swallowed failures on best-effort paths.
func LogWarn(ctx context.Context, module, action string, err error, attrs ...any) {
	logAt(ctx, slog.LevelWarn, module, action, errString(err), attrs...)
}

// LogError is LogEvent for failures that need operator attention.
func LogError(ctx context.Context, module, action string, err error, attrs ...any) {
	logAt(ctx, slog.LevelError, module, action, errString(err), attrs...)
}

func logAt(ctx context.Context, level slog.Level, module, action, message string, attrs ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	args := append([]any{
		slog.String("module", strings.ToUpper(module)),
		slog.String("action", action),
		slog.String("request_id", RequestIDFrom(ctx)),
	}, attrs...)
	logger.Log(ctx, level, message, args...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
