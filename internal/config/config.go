package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/KshitijGomber/arrow3-sub001/pkg/config"
)

// Token store backend names.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all configuration for the Arrow3 client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend API
	APIBaseURL     string        `env:"ARROW3_API_BASE_URL" envDefault:"http://localhost:5000/api"`
	RequestTimeout time.Duration `env:"ARROW3_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"ARROW3_MAX_RETRIES" envDefault:"3"`

	// Google OAuth
	GoogleClientID    string `env:"ARROW3_GOOGLE_CLIENT_ID"`
	OAuthCallbackPort int    `env:"ARROW3_OAUTH_CALLBACK_PORT" envDefault:"8765"`

	// Token storage
	TokenStore    string `env:"ARROW3_TOKEN_STORE" envDefault:"file"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Request cache
	CacheStaleAfter time.Duration `env:"ARROW3_CACHE_STALE_AFTER" envDefault:"2m"`
	CacheEvictAfter time.Duration `env:"ARROW3_CACHE_EVICT_AFTER" envDefault:"10m"`

	// Proactive refresh: refresh the access token when it expires within this window.
	RefreshWindow time.Duration `env:"ARROW3_REFRESH_WINDOW" envDefault:"30s"`

	// Tracing
	TracingEnabled bool   `env:"ARROW3_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables. Validation runs
// through the loader's Validate hook.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load arrow3 config: %w", err)
	}
	return cfg, nil
}

// Validate normalizes the base URL and checks cross-field constraints.
// Called by pkg/config.Load after parsing.
func (c *Config) Validate() error {
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")

	switch c.TokenStore {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("invalid token store %q: must be one of file, redis, memory", c.TokenStore)
	}

	if c.OAuthCallbackPort < 1 || c.OAuthCallbackPort > 65535 {
		return fmt.Errorf("invalid OAuth callback port: %d", c.OAuthCallbackPort)
	}

	if c.CacheStaleAfter > c.CacheEvictAfter {
		return fmt.Errorf("cache stale-after (%s) must not exceed evict-after (%s)",
			c.CacheStaleAfter, c.CacheEvictAfter)
	}

	return nil
}

// RedisAddr returns the Redis address string.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// OAuthRedirectURL returns the loopback URL the OAuth provider redirects to.
func (c *Config) OAuthRedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/auth/google/callback", c.OAuthCallbackPort)
}
