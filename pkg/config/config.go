// Package config provides environment-based configuration for the vault hub.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the vault hub API server.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret string

	// Server configuration
	APIPort int
	APIHost string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Vault holds envelope encryption configuration.
	Vault VaultConfig

	// Probe holds connectivity test configuration.
	Probe ProbeConfig

	// RateLimit holds the vault mutation rate limit configuration.
	RateLimit RateLimitConfig
}

// VaultConfig holds envelope encryption configuration.
type VaultConfig struct {
	// MasterKeyHex is the operator-supplied AES-256 key as 64 hex
	// characters. It is deliberately NOT validated at startup; absence or a
	// malformed value is a fatal error raised on first use.
	MasterKeyHex string
}

// ProbeConfig holds connectivity test configuration.
type ProbeConfig struct {
	// DelegateBaseURL is the optional remote probe orchestrator. Empty
	// means probes always run locally.
	DelegateBaseURL string
	// DelegateTimeout bounds the forwarded delegate request.
	DelegateTimeout time.Duration
	// Timeout bounds each local provider handshake.
	Timeout time.Duration
	// WriteBackTimeout bounds the async health persistence.
	WriteBackTimeout time.Duration
}

// RateLimitConfig holds the vault mutation rate limit configuration.
type RateLimitConfig struct {
	Limit      int
	Window     time.Duration
	MaxEntries int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/vaulthub?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		APIPort:         getIntEnv("API_PORT", 8080),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Vault: VaultConfig{
			MasterKeyHex: getEnv("VAULT_MASTER_KEY", ""),
		},
		Probe: ProbeConfig{
			DelegateBaseURL:  getEnv("PROBE_DELEGATE_URL", ""),
			DelegateTimeout:  getDurationEnv("PROBE_DELEGATE_TIMEOUT", 5*time.Second),
			Timeout:          getDurationEnv("PROBE_TIMEOUT", 8*time.Second),
			WriteBackTimeout: getDurationEnv("PROBE_WRITEBACK_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Limit:      getIntEnv("RATE_LIMIT", 100),
			Window:     getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			MaxEntries: getIntEnv("RATE_LIMIT_MAX_ENTRIES", 10000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set. The vault
// master key is intentionally excluded; its validation happens on first use.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
