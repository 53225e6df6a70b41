// Package config loads ghost-relay's environment configuration and builds
// its logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the relay's runtime configuration.
type Config struct {
	Port            int    `env:"PORT" envDefault:"3000"`
	Host            string `env:"HOST"`
	DBPath          string `env:"DB_PATH" envDefault:":memory:"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text"`
	MaxMessageBytes int    `env:"MAX_MESSAGE_BYTES" envDefault:"131072"`
	RestrictFilters bool   `env:"RESTRICT_FILTERS" envDefault:"false"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d: must be between 1 and 65535", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("invalid DB_PATH: must not be empty")
	}
	if _, _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", c.LogFormat)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("invalid MAX_MESSAGE_BYTES %d: must be positive", c.MaxMessageBytes)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Levels beyond slog's four.
const (
	LevelTrace = slog.LevelDebug - 4
	LevelFatal = slog.LevelError + 4
)

// ParseLevel maps a LOG_LEVEL value to a slog level. silent reports that
// logging is disabled.
func ParseLevel(s string) (level slog.Level, silent bool, err error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, false, nil
	case "debug":
		return slog.LevelDebug, false, nil
	case "info", "":
		return slog.LevelInfo, false, nil
	case "warn", "warning":
		return slog.LevelWarn, false, nil
	case "error":
		return slog.LevelError, false, nil
	case "fatal":
		return LevelFatal, false, nil
	case "silent":
		return LevelFatal, true, nil
	default:
		return 0, false, fmt.Errorf("invalid LOG_LEVEL %q: must be one of fatal, error, warn, info, debug, trace, silent", s)
	}
}

// NewLogger builds the logger described by c, writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, silent, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if silent {
		return slog.New(slog.DiscardHandler), nil
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: renameLevels}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func renameLevels(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case LevelFatal:
		a.Value = slog.StringValue("FATAL")
	}
	return a
}
