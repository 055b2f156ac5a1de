// Package logging provides structured logging configuration using log/slog.
//
// This package integrates with chi's RequestID middleware to propagate
// request IDs through structured log entries. Control sessions add their id
// the same way, so every line written during a save batch can be traced back
// to both the HTTP request and the grid session that issued it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const controlIDKey ctxKey = iota

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithControlID returns a context whose loggers carry control_id.
func WithControlID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, controlIDKey, id)
}

// ControlID returns the control id stored in ctx, if any.
func ControlID(ctx context.Context) string {
	id, _ := ctx.Value(controlIDKey).(string)
	return id
}

// FromContext returns the default logger enriched with request_id and
// control_id when ctx carries them.
//
// Usage:
//
//	func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("save requested", "entity", entity)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id := ControlID(ctx); id != "" {
		logger = logger.With("control_id", id)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
//	batchLogger := logging.WithFields(ctx, "batch_id", batchID, "entity", entity)
//	batchLogger.Info("save started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
