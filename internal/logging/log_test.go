package logging

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	orig := Level()
	defer SetLevel(orig)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(tt.level)
			if got := Level(); got != tt.level {
				t.Errorf("Level() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestComponentAttribute(t *testing.T) {
	orig := Level()
	defer SetLevel(orig)
	defer SetOutput(os.Stderr, FormatText)

	var buf bytes.Buffer
	SetOutput(&buf, FormatText)
	SetLevel(slog.LevelInfo)

	Info(ComponentEngine, "armed", "device", 2)
	out := buf.String()
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "device=2") {
		t.Fatalf("missing attributes in %q", out)
	}

	buf.Reset()
	Debug(ComponentEngine, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record emitted at info level: %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	defer SetOutput(os.Stderr, FormatText)

	var buf bytes.Buffer
	SetOutput(&buf, FormatJSON)
	Error(ComponentHAL, "shutdown failed")
	if !strings.Contains(buf.String(), `"component":"hal"`) {
		t.Fatalf("JSON output missing component: %s", buf.String())
	}
}
