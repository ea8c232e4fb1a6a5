// Package config loads process configuration from a YAML file with
// environment-variable overrides, in a layered default -> file -> env-var
// precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the gRPC listener.
type ServerConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	MaxInFlightTxns       int64  `yaml:"max_in_flight_txns"`
	RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst        int    `yaml:"rate_limit_burst"`
}

// DatabaseConfig names the persistent backend. vertexdb ships an
// in-process backend by default; URL is validated but unused unless a
// pgstore-conforming backend is compiled in.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	PublicKeyPath string `yaml:"public_key_path"`
	Issuer        string `yaml:"issuer"`
}

// ZookieConfig configures the revision token HMAC.
type ZookieConfig struct {
	HMACSecret string `yaml:"hmac_secret"`
}

// ObservabilityConfig controls the ambient stack.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
}

// StorageConfig tunes the in-process backend.
type StorageConfig struct {
	ObjectCacheSize int `yaml:"object_cache_size"`
}

// Config is the top-level process configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	JWT           JWTConfig           `yaml:"jwt"`
	Zookie        ZookieConfig        `yaml:"zookie"`
	Observability ObservabilityConfig `yaml:"observability"`
	Storage       StorageConfig       `yaml:"storage"`
}

// Load reads filePath (if it exists), applies defaults for anything left
// unset, layers VERTEXDB_-prefixed environment variable overrides on top,
// and validates the result. All required values are fatal-at-startup if
// still missing after this.
func Load(filePath string) (*Config, error) {
	cfg := &Config{}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
		}
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8980
	}
	if cfg.Server.MaxInFlightTxns == 0 {
		cfg.Server.MaxInFlightTxns = 256
	}
	if cfg.Server.RateLimitPerSecond == 0 {
		cfg.Server.RateLimitPerSecond = 500
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 100
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.MetricsPort == 0 {
		cfg.Observability.MetricsPort = 9980
	}
	if cfg.Observability.HealthPort == 0 {
		cfg.Observability.HealthPort = 9981
	}
	if cfg.Storage.ObjectCacheSize == 0 {
		cfg.Storage.ObjectCacheSize = 4096
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 16
	}
	if cfg.Database.TimeoutSeconds == 0 {
		cfg.Database.TimeoutSeconds = 10
	}
}

// applyEnvOverrides layers VERTEXDB_-prefixed environment variables over
// whatever the file/defaults produced.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERTEXDB_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VERTEXDB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("VERTEXDB_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("VERTEXDB_JWT_PUBLIC_KEY_PATH"); v != "" {
		cfg.JWT.PublicKeyPath = v
	}
	if v := os.Getenv("VERTEXDB_JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("VERTEXDB_ZOOKIE_HMAC_SECRET"); v != "" {
		cfg.Zookie.HMACSecret = v
	}
	if v := os.Getenv("VERTEXDB_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}

// Validate enforces that every value required at process start is present.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("jwt.public_key_path is required")
	}
	if c.JWT.Issuer == "" {
		return fmt.Errorf("jwt.issuer is required")
	}
	if c.Zookie.HMACSecret == "" {
		return fmt.Errorf("zookie.hmac_secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

// Address returns the host:port the gRPC server should listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
