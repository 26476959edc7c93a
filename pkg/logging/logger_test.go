package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := Setup(Config{Level: LevelInfo, Output: &buf})
	logger.Info().Str("key", "value").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "hello" || entry["key"] != "value" {
		t.Errorf("Entry = %v, want message and field", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Entry missing timestamp")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := Setup(Config{Level: LevelWarn, Output: &buf})
	logger.Info().Msg("suppressed")
	logger.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("Info entry leaked past warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("Warn entry missing")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: LevelInfo, Output: &buf})

	logger := NewLogger("cache")
	logger.Info().Msg("entry")

	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Errorf("Output = %s, want component field", buf.String())
	}
}
