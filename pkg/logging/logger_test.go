package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// captureLines decodes every JSON line written to buf.
func captureLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("Log line is not JSON: %q: %v", raw, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Expected a default output writer")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogLevel_ZerologLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.zerologLevel(); got != tt.want {
				t.Errorf("zerologLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{LevelDebug, []string{"tier3 hit", "tier1 loaded", "promotion skipped", "synthesis failed"}},
		{LevelInfo, []string{"tier1 loaded", "promotion skipped", "synthesis failed"}},
		{LevelWarn, []string{"promotion skipped", "synthesis failed"}},
		{LevelError, []string{"synthesis failed"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})

			logger := NewLogger("manager")
			logger.Debug().Msg("tier3 hit")
			logger.Info().Msg("tier1 loaded")
			logger.Warn().Msg("promotion skipped")
			logger.Error().Msg("synthesis failed")

			lines := captureLines(t, buf)
			if len(lines) != len(tt.want) {
				t.Fatalf("Expected %d lines at %s, got %d: %s", len(tt.want), tt.level, len(lines), buf.String())
			}
			for i, msg := range tt.want {
				if lines[i]["message"] != msg {
					t.Errorf("Line %d: expected message %q, got %v", i, msg, lines[i]["message"])
				}
			}
		})
	}
}

func TestNewLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("loader")
	logger.Info().
		Str("fingerprint", "6e340b9cffb37a989ca544e6bb780a2c").
		Int("loaded", 3).
		Msg("Tier1 loaded")

	lines := captureLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}

	line := lines[0]
	checks := map[string]any{
		"service":     ServiceName,
		"component":   "loader",
		"fingerprint": "6e340b9cffb37a989ca544e6bb780a2c",
		"loaded":      float64(3),
		"level":       "info",
	}
	for key, want := range checks {
		if line[key] != want {
			t.Errorf("Expected %s=%v, got %v", key, want, line[key])
		}
	}
	if _, ok := line["time"]; !ok {
		t.Error("Expected a timestamp field")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("server")
	logger.Info().Msg("Starting tiercache server")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("Expected console output, got JSON: %q", out)
	}
	if !strings.Contains(out, "Starting tiercache server") {
		t.Errorf("Expected message in console output, got %q", out)
	}
}

func TestNop(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Output: buf})

	logger := Nop()
	logger.Error().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected Nop logger to write nothing, got %q", buf.String())
	}
}
