package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"shopcrawl/internal/config"
)

func TestNew_Levels(t *testing.T) {
	l, err := New(config.LoggerConfig{Level: "warn", Encoding: "console"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("level not applied")
	}
}

func TestNew_Development(t *testing.T) {
	l, err := New(config.LoggerConfig{Development: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("development logger should enable debug")
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
