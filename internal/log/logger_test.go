package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Component: ComponentHTTP})
	logger.WithComponent(ComponentLedger).Info("Ledger updated", FieldVersion, 3)

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || strings.Contains(out, "component=http") {
		t.Fatalf("unexpected component in %q", out)
	}
	if !strings.Contains(out, "ledger_version=3") {
		t.Fatalf("missing version in %q", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf, Format: "JSON"}).Info("ready")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"component":"app"`) {
		t.Fatalf("expected json with default component, got %q", buf.String())
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := Discard().WithComponent(ComponentWorker)
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}

	reqLogger := Discard().With(FieldRequestID, "req_1")
	ctx := NewContext(context.Background(), reqLogger)
	if got := FromContextOr(ctx, fallback); got != reqLogger {
		t.Fatalf("expected request logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("FromContext component = %q", got)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithInvoice("inv-1", "").WithVersion(7).WithOperation(OpImport)
	if _, ok := f[FieldLineID]; ok {
		t.Fatalf("blank line id should be omitted: %v", f)
	}
	if len(f.ToSlice()) != 6 {
		t.Fatalf("ToSlice = %v", f.ToSlice())
	}
}
