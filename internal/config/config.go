// Package config defines service configuration and how it is layered from
// defaults, an optional YAML file and the environment.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text, json or auto.
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, sends logs to a rotating file instead of stdout.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver is pgx, postgres or sqlite.
	DatabaseDriver string `koanf:"database_driver"`
	// DatabaseURL is the driver DSN. Empty leaves the service without a store:
	// it starts, but every reload reports the store as unavailable.
	DatabaseURL string `koanf:"database_url"`
	// QueryTimeoutMS bounds each store query.
	QueryTimeoutMS int `koanf:"query_timeout_ms"`
	// ConnectTimeoutMS bounds the startup ping.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`
	// MaxOpenConns caps the connection pool; zero means unlimited.
	MaxOpenConns int `koanf:"max_open_conns"`

	// MaxSessions bounds live sessions; the longest idle is evicted when full.
	MaxSessions int `koanf:"max_sessions"`
	// SessionIdleTTLSeconds is how long an untouched session survives.
	SessionIdleTTLSeconds int `koanf:"session_idle_ttl_seconds"`
	// SweepIntervalSeconds is how often idle sessions are evicted.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "auto",
		Addr:                  ":9080",
		DatabaseDriver:        "pgx",
		QueryTimeoutMS:        15_000,
		ConnectTimeoutMS:      5_000,
		MaxOpenConns:          10,
		MaxSessions:           1_000,
		SessionIdleTTLSeconds: 1_800,
		SweepIntervalSeconds:  60,
	}
}

// QueryTimeout returns QueryTimeoutMS as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// ConnectTimeout returns ConnectTimeoutMS as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// SessionIdleTTL returns SessionIdleTTLSeconds as a duration.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}

// SweepInterval returns SweepIntervalSeconds as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
