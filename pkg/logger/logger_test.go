package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_LevelParsing(t *testing.T) {
	cases := []struct {
		level   string
		enabled zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}

	for _, tc := range cases {
		l := New(tc.level, "json")
		if l == nil {
			t.Fatalf("New(%q) returned nil", tc.level)
		}
		if !l.Core().Enabled(tc.enabled) {
			t.Errorf("expected level %s to be enabled for %q", tc.enabled, tc.level)
		}
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	l := New("info", "console")
	if l == nil {
		t.Fatal("expected logger, got nil")
	}
	l.Sugar().Infow("console logger works", "key", "value")
}
