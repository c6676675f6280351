package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Expected default format json, got %q", cfg.Format)
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Format: "json", Output: buf})

	logger.Info().Str("days", "3").Msg("test info message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "test info message" {
		t.Errorf("message = %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name     string
		level    LogLevel
		logDebug bool
		logWarn  bool
	}{
		{"debug", LevelDebug, true, true},
		{"info", LevelInfo, false, true},
		{"warn", LevelWarn, false, true},
		{"error", LevelError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.logDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.logDebug)
			}

			logger.Warn().Msg("warn line")
			if got := strings.Contains(buf.String(), "warn line"); got != tt.logWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.logWarn)
			}
		})
	}
}

func TestSetup_Console(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Format: "console", Output: buf})
	logger.Info().Msg("console message")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("Expected console output, got JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "console message") {
		t.Errorf("Expected message in output, got %q", buf.String())
	}
}

func TestSetup_SetsGlobalLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	NewLogger("prices").Info().Msg("from component")

	if !strings.Contains(buf.String(), `"component":"prices"`) {
		t.Errorf("Expected component field, got %q", buf.String())
	}

	log.Logger = zerolog.Nop()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
