// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package config loads Partyline configuration: defaults, then an
// optional YAML file, then command-line flags, each layer overriding
// the one before.
package config

import (
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// GatewayConfig configures one gateway node.
type GatewayConfig struct {
	Addr        string `koanf:"addr"`
	MetricsAddr string `koanf:"metrics_addr"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `koanf:"heartbeat_timeout"`
	ProbeInterval     time.Duration `koanf:"probe_interval"`

	SendQueue int `koanf:"send_queue"`

	// AllowedOrigins is a list of glob patterns matched against the
	// Origin header at handshake. Empty allows everything.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// OriginGlobs compiles the origin allow-list.
func (g GatewayConfig) OriginGlobs() ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(g.AllowedOrigins))
	for _, pattern := range g.AllowedOrigins {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.In("config").
				Code("INVALID_ORIGIN_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
		out = append(out, compiled)
	}
	return out, nil
}

// BackendConfig configures the backend service.
type BackendConfig struct {
	DatabaseURL        string        `koanf:"database_url"`
	MetricsAddr        string        `koanf:"metrics_addr"`
	CacheSweepInterval time.Duration `koanf:"cache_sweep_interval"`
}

// Config is the root configuration.
type Config struct {
	LogFormat string `koanf:"log_format"`

	Gateway GatewayConfig `koanf:"gateway"`
	Backend BackendConfig `koanf:"backend"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogFormat: "json",
		Gateway: GatewayConfig{
			Addr:              ":8040",
			MetricsAddr:       ":9040",
			HeartbeatInterval: 45 * time.Second,
			HeartbeatTimeout:  52 * time.Second,
			ProbeInterval:     8 * time.Second,
			SendQueue:         16,
		},
		Backend: BackendConfig{
			MetricsAddr:        ":9041",
			CacheSweepInterval: 60 * time.Second,
		},
	}
}

// Load assembles the configuration: defaults, then path (if set), then
// flags (if non-nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").
				Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("config").Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that could not run.
func (c *Config) Validate() error {
	base := oops.In("config").Code("CONFIG_INVALID")

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return base.With("log_format", c.LogFormat).Errorf("log_format must be json or text")
	}
	if c.Gateway.HeartbeatInterval <= 0 || c.Gateway.HeartbeatTimeout <= 0 || c.Gateway.ProbeInterval <= 0 {
		return base.Errorf("gateway heartbeat durations must be positive")
	}
	if c.Gateway.HeartbeatTimeout <= c.Gateway.HeartbeatInterval {
		return base.Errorf("heartbeat_timeout must exceed heartbeat_interval")
	}
	if c.Gateway.SendQueue <= 0 {
		return base.Errorf("send_queue must be positive")
	}
	if c.Backend.CacheSweepInterval <= 0 {
		return base.Errorf("cache_sweep_interval must be positive")
	}
	if _, err := c.Gateway.OriginGlobs(); err != nil {
		return err
	}
	return nil
}
