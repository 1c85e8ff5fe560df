// Package logging provides structured logging configuration using log/slog.
//
// This package integrates with chi's RequestID middleware to propagate
// request IDs through structured log entries. The shop domain of an admin
// request travels the same way, so every entry written while serving a
// merchant can be filtered by store.
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

const (
	shopKey ctxKey = iota
	fieldsKey
)

// Setup configures the global slog logger to write to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination. The CLI logs to stderr
// so command output on stdout stays machine-readable.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// ContextWithShop stores the shop domain for FromContext.
func ContextWithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

// ShopFromContext returns the shop domain stored by ContextWithShop.
func ShopFromContext(ctx context.Context) string {
	shop, _ := ctx.Value(shopKey).(string)
	return shop
}

// ContextWithFields attaches key-value pairs that every FromContext logger
// derived from the returned context includes, down into the store layer.
func ContextWithFields(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey).([]any)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(append(fields, prev...), args...)
	return context.WithValue(ctx, fieldsKey, fields)
}

// FromContext returns a logger enriched with request context.
//
// When the context carries a chi RequestID the logger includes request_id;
// when it carries a shop domain the logger includes shop. Fields added with
// ContextWithFields follow.
//
// Usage:
//
//	logger := logging.FromContext(r.Context())
//	logger.Info("settings saved", "layout", layout)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if shop := ShopFromContext(ctx); shop != "" {
		logger = logger.With("shop", shop)
	}
	if fields, ok := ctx.Value(fieldsKey).([]any); ok {
		logger = logger.With(fields...)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	syncLog := logging.WithFields(ctx, "sync_id", syncID)
//	syncLog.Info("sync started", "sources", len(mappings))
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
