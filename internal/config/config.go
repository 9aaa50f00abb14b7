package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultResolverTimeout bounds each call to the external resolver.
	DefaultResolverTimeout = 10 * time.Second

	// DefaultProbeInterval is how long a resolver availability probe result
	// (positive or negative) is cached before re-probing.
	DefaultProbeInterval = 30 * time.Second
)

// Config holds all configuration for almoner.
type Config struct {
	Graph    GraphConfig    `mapstructure:"graph"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// GraphConfig holds Bolt connection settings for the graph engine.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation with the password masked.
func (g GraphConfig) String() string {
	pass := ""
	if g.Password != "" {
		pass = "***"
	}
	return fmt.Sprintf("GraphConfig{URI:%s, Username:%s, Password:%s, Database:%s}", g.URI, g.Username, pass, g.Database)
}

// ResolverConfig holds external resolver service settings. An empty BaseURL
// disables the external tier.
type ResolverConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	ProbeIntervalSeconds int    `mapstructure:"probe_interval_seconds"`
}

// Timeout returns the per-call timeout as a duration.
func (r ResolverConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return DefaultResolverTimeout
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ProbeInterval returns the availability cache window as a duration.
func (r ResolverConfig) ProbeInterval() time.Duration {
	if r.ProbeIntervalSeconds <= 0 {
		return DefaultProbeInterval
	}
	return time.Duration(r.ProbeIntervalSeconds) * time.Second
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "almoner")

	v.SetDefault("resolver.base_url", "http://localhost:8000")
	v.SetDefault("resolver.timeout_seconds", int(DefaultResolverTimeout/time.Second))
	v.SetDefault("resolver.probe_interval_seconds", int(DefaultProbeInterval/time.Second))

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/almoner")
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("ALMONER")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("graph.uri", "ALMONER_GRAPH_URI")
	_ = v.BindEnv("graph.username", "ALMONER_GRAPH_USERNAME")
	_ = v.BindEnv("graph.password", "ALMONER_GRAPH_PASSWORD")
	_ = v.BindEnv("graph.database", "ALMONER_GRAPH_DATABASE")
	_ = v.BindEnv("resolver.base_url", "ALMONER_RESOLVER_BASE_URL")
	_ = v.BindEnv("api.listen_addr", "ALMONER_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "ALMONER_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return fmt.Errorf("graph.uri must not be empty")
	}
	if c.Graph.Database == "" {
		return fmt.Errorf("graph.database must not be empty")
	}
	if c.Resolver.TimeoutSeconds < 0 {
		return fmt.Errorf("resolver.timeout_seconds must be >= 0")
	}
	if c.Resolver.ProbeIntervalSeconds < 0 {
		return fmt.Errorf("resolver.probe_interval_seconds must be >= 0")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	return nil
}
