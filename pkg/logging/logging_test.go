package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"  error  ", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStructuredLoggerAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newStructuredLogger(&buf, "labctl", "v0.1.0", "info")
	logger.Info("stage completed", "stage", "certs")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if rec["module"] != "labctl" {
		t.Errorf("expected module labctl, got %v", rec["module"])
	}
	if rec["version"] != "v0.1.0" {
		t.Errorf("expected version v0.1.0, got %v", rec["version"])
	}
	if rec["stage"] != "certs" {
		t.Errorf("expected stage certs, got %v", rec["stage"])
	}
	if _, ok := rec["source"]; ok {
		t.Error("source should only be attached at debug level")
	}
}

func TestStructuredLoggerDebugSource(t *testing.T) {
	var buf bytes.Buffer
	logger := newStructuredLogger(&buf, "labctl", "dev", "debug")
	logger.Debug("running command")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source location at debug level")
	}
}

func TestStructuredLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newStructuredLogger(&buf, "labctl", "dev", "error")
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at error level, got %s", buf.String())
	}
}
