package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SECONDVOTE_ADDR.
	EnvPrefix = "SECONDVOTE_"
	// EnvConfigFile names an optional YAML config file.
	EnvConfigFile = EnvPrefix + "CONFIG"
	// DefaultDotEnv is read before the environment is layered, if present.
	DefaultDotEnv = ".env"
)

var (
	drivers    = []string{"pgx", "postgres", "sqlite"}
	logFormats = []string{"text", "json", "auto"}
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

// LoadOption tweaks how Load finds its inputs.
type LoadOption func(*loadOptions)

type loadOptions struct {
	dotEnv string
}

// WithDotEnv reads path instead of .env. An empty path skips it.
func WithDotEnv(path string) LoadOption {
	return func(o *loadOptions) { o.dotEnv = path }
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file named by SECONDVOTE_CONFIG
//  3. environment SECONDVOTE_*, after .env has been merged into it
//
// Variables already set in the process win over .env.
func Load(_ context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{dotEnv: DefaultDotEnv}
	for _, opt := range opts {
		opt(&o)
	}

	if o.dotEnv != "" {
		if err := godotenv.Load(o.dotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, o.dotEnv, err)
		}
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// SECONDVOTE_QUERY_TIMEOUT_MS -> query_timeout_ms
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains(drivers, c.DatabaseDriver):
		return fmt.Errorf("%w: database_driver %q is not one of %v", ErrInvalidConfig, c.DatabaseDriver, drivers)
	case !slices.Contains(logFormats, strings.ToLower(c.LogFormat)):
		return fmt.Errorf("%w: log_format %q is not one of %v", ErrInvalidConfig, c.LogFormat, logFormats)
	case !slices.Contains(logLevels, strings.ToLower(c.LogLevel)):
		return fmt.Errorf("%w: log_level %q is not one of %v", ErrInvalidConfig, c.LogLevel, logLevels)
	case c.QueryTimeoutMS <= 0:
		return fmt.Errorf("%w: query_timeout_ms must be positive", ErrInvalidConfig)
	case c.ConnectTimeoutMS <= 0:
		return fmt.Errorf("%w: connect_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxOpenConns < 0:
		return fmt.Errorf("%w: max_open_conns must not be negative", ErrInvalidConfig)
	case c.MaxSessions <= 0:
		return fmt.Errorf("%w: max_sessions must be positive", ErrInvalidConfig)
	case c.SessionIdleTTLSeconds <= 0:
		return fmt.Errorf("%w: session_idle_ttl_seconds must be positive", ErrInvalidConfig)
	case c.SweepIntervalSeconds <= 0:
		return fmt.Errorf("%w: sweep_interval_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}
