// Package config defines the server's runtime configuration, loaded from a
// TOML file with defaults for everything.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds every tuneable for one server process.
type Config struct {
	// ListenAddr is the TCP bind address, e.g. ":8081".
	ListenAddr string `toml:"listen_addr"`
	// AdvertiseAddr is the routable address registered for discovery. It
	// differs from ListenAddr because ":8081" is not dialable by peers.
	AdvertiseAddr string `toml:"advertise_addr"`
	// ServiceName is the discovery key this server registers under.
	ServiceName string `toml:"service_name"`
	// EtcdEndpoints enables etcd-based discovery when non-empty.
	EtcdEndpoints []string `toml:"etcd_endpoints"`

	// MaxConns caps concurrently served connections. 0 means unbounded.
	MaxConns int `toml:"max_conns"`
	// MaxQueryBytes / MaxBodyBytes bound per-frame allocation.
	MaxQueryBytes uint64 `toml:"max_query_bytes"`
	MaxBodyBytes  uint64 `toml:"max_body_bytes"`

	// RateLimit is requests/second across all connections; 0 disables the
	// limiter. RateBurst is the token bucket size.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`

	// RequestTimeoutMS bounds one handler invocation; 0 disables.
	RequestTimeoutMS int `toml:"request_timeout_ms"`
	// ShutdownTimeoutMS bounds the graceful drain on shutdown.
	ShutdownTimeoutMS int `toml:"shutdown_timeout_ms"`

	// LogLevel is one of trace, debug, info, warn, error, disabled.
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:        ":8081",
		ServiceName:       "repe",
		MaxConns:          1024,
		MaxQueryBytes:     64 * 1024,
		MaxBodyBytes:      8 * 1024 * 1024,
		RateBurst:         100,
		ShutdownTimeoutMS: 5000,
		LogLevel:          "info",
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot serve.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("config: max_conns must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("config: rate_burst must be positive when rate_limit is set")
	}
	if c.RequestTimeoutMS < 0 || c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if len(c.EtcdEndpoints) > 0 && c.AdvertiseAddr == "" {
		return fmt.Errorf("config: advertise_addr is required with etcd_endpoints")
	}
	return nil
}
