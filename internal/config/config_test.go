package config

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{
		Port:            3000,
		DBPath:          ":memory:",
		LogLevel:        "info",
		LogFormat:       "text",
		MaxMessageBytes: 131072,
	}, cfg)
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("DB_PATH", "/var/lib/ghost/relay.db")
	t.Setenv("LOG_LEVEL", "trace")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("MAX_MESSAGE_BYTES", "1024")
	t.Setenv("RESTRICT_FILTERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "127.0.0.1:7777", cfg.Addr())
	assert.Equal(t, "/var/lib/ghost/relay.db", cfg.DBPath)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1024, cfg.MaxMessageBytes)
	assert.True(t, cfg.RestrictFilters)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 3000, DBPath: ":memory:", LogLevel: "info", LogFormat: "text", MaxMessageBytes: 1}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "invalid PORT"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid PORT"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "invalid DB_PATH"},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, "invalid LOG_LEVEL"},
		{"unknown format", func(c *Config) { c.LogFormat = "xml" }, "invalid LOG_FORMAT"},
		{"zero message size", func(c *Config) { c.MaxMessageBytes = 0 }, "invalid MAX_MESSAGE_BYTES"},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		level  slog.Level
		silent bool
	}{
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"fatal", LevelFatal, false},
		{"silent", LevelFatal, true},
	}
	for _, tt := range tests {
		level, silent, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.level, level, tt.in)
		assert.Equal(t, tt.silent, silent, tt.in)
	}
}

func TestNewLogger_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Config{LogLevel: "warn", LogFormat: "text"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "key=value")
}

func TestNewLogger_JSONTrace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Config{LogLevel: "trace", LogFormat: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Log(context.Background(), LevelTrace, "deep")

	assert.Contains(t, buf.String(), `"level":"TRACE"`)
	assert.Contains(t, buf.String(), `"msg":"deep"`)
}

func TestNewLogger_Silent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Config{LogLevel: "silent", LogFormat: "text"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Error("nothing")
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
