package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime holds process settings read from the environment.
type Runtime struct {
	DBPath           string        `env:"MATCHSTICK_DB" envDefault:"matchstick.db"`
	BalancePath      string        `env:"MATCHSTICK_BALANCE"`
	AutosaveInterval time.Duration `env:"MATCHSTICK_AUTOSAVE_INTERVAL" envDefault:"30s"`
	LogLevel         string        `env:"MATCHSTICK_LOG_LEVEL" envDefault:"info"`
	MetricsAddr      string        `env:"MATCHSTICK_METRICS_ADDR"`
	NotifyPerSecond  float64       `env:"MATCHSTICK_NOTIFY_RATE" envDefault:"2"`
	NotifyBurst      int           `env:"MATCHSTICK_NOTIFY_BURST" envDefault:"5"`
}

// ParseRuntime loads Runtime from the environment.
func ParseRuntime() (Runtime, error) {
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return Runtime{}, fmt.Errorf("parse env: %w", err)
	}
	if rt.AutosaveInterval <= 0 {
		return Runtime{}, fmt.Errorf("MATCHSTICK_AUTOSAVE_INTERVAL must be positive, got %s", rt.AutosaveInterval)
	}
	return rt, nil
}

// Level maps LogLevel to a slog level. Unknown names mean info.
func (rt Runtime) Level() slog.Level {
	switch strings.ToLower(rt.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
