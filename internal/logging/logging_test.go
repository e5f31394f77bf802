package logging

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
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
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

func TestNewWithWriterFormats(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, "info", "json")
	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), `"key":"value"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	logger = NewWithWriter(&buf, "info", "text")
	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestForVerbosityLevels(t *testing.T) {
	ctx := context.Background()

	quiet := ForVerbosity(false)
	if quiet.Enabled(ctx, slog.LevelDebug) {
		t.Error("non-verbose logger enables debug")
	}
	if !quiet.Enabled(ctx, slog.LevelInfo) {
		t.Error("non-verbose logger disables info")
	}

	loud := ForVerbosity(true)
	if !loud.Enabled(ctx, slog.LevelDebug) {
		t.Error("verbose logger disables debug")
	}
}
