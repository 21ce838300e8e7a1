package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// Middleware adds logger to every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context, falling back to
// the process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware tags the context logger with the request id.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger emits the ledger's recurring log lines with a fixed shape.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogMutation records a committed mutation.
func (sl *StructuredLogger) LogMutation(ctx context.Context, msg, operation string, fields LogFields) {
	sl.logger.InfoContext(ctx, msg, fields.WithOperation(operation).ToSlice()...)
}

// LogRejected records input refused before any store call.
func (sl *StructuredLogger) LogRejected(ctx context.Context, msg, operation string, err error, fields LogFields) {
	sl.logger.WarnContext(ctx, msg, fields.
		WithError(err).
		WithErrorType(ErrorTypeValidation).
		WithOperation(operation).
		ToSlice()...)
}

// LogError logs a failure with its category.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, errorType, operation string, fields LogFields) {
	sl.logger.ErrorContext(ctx, msg, fields.
		WithError(err).
		WithErrorType(errorType).
		WithOperation(operation).
		ToSlice()...)
}
