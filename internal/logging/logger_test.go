package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_AddsRequestIDAndShop(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = ContextWithShop(ctx, "demo.myshopify.com")
	WithFields(ctx, "sync_id", "abc").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want %q", entry["request_id"], "req-42")
	}
	if entry["shop"] != "demo.myshopify.com" {
		t.Errorf("shop = %v, want %q", entry["shop"], "demo.myshopify.com")
	}
	if entry["sync_id"] != "abc" {
		t.Errorf("sync_id = %v, want %q", entry["sync_id"], "abc")
	}
}

func TestContextWithFields_Accumulates(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := ContextWithFields(context.Background(), "sync_id", "abc")
	ctx = ContextWithFields(ctx, "product_id", "p1")
	FromContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["sync_id"] != "abc" || entry["product_id"] != "p1" {
		t.Errorf("entry = %v, want sync_id and product_id", entry)
	}
}

func TestShopFromContext_Empty(t *testing.T) {
	if got := ShopFromContext(context.Background()); got != "" {
		t.Errorf("ShopFromContext() = %q, want empty", got)
	}
}
