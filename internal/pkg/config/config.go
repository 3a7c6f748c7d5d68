// Package config loads runtime configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the storefront client configuration, loaded from STOREFRONT_*
// environment variables.
type Config struct {
	// APIBaseURL is the storefront backend root, e.g. "http://127.0.0.1:8000/api/v1".
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000/api/v1"`

	// RequestTimeout bounds every outgoing HTTP call. Timeouts are treated
	// like any other network failure.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`

	// TokenDBPath is the sqlite file holding session tokens between runs.
	TokenDBPath string `envconfig:"TOKEN_DB_PATH" default:"./data/session.db"`

	// AuditDBPath is the sqlite file holding the local order status audit trail.
	AuditDBPath string `envconfig:"AUDIT_DB_PATH" default:"./data/audit.db"`

	// RedisAddr enables the order view cache when non-empty.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// CacheTTL is how long cached order views stay fresh.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"30s"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("STOREFRONT", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
