package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL; when empty carts persist to DataDir (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	DataDir     string `default:"./data" usage:"Directory for file-backed cart slots when no database is configured" flag:"data-dir"`

	Catalog   CatalogConfig
	PayPal    PayPalConfig
	Analytics AnalyticsConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CatalogConfig points at the upstream catalog backend.
type CatalogConfig struct {
	BaseURL      string `usage:"Catalog backend root URL" flag:"catalog-base-url"`
	ImageBaseURL string `default:"" usage:"Host for resolving relative book image paths (defaults to BaseURL)" flag:"image-base-url"`
	// CurrencyExponent converts catalog major-unit prices to minor units.
	// 2 for USD-like currencies, 0 for VND.
	CurrencyExponent int32  `default:"2" usage:"Minor-unit exponent of the storefront currency" flag:"currency-exponent"`
	Currency         string `default:"USD" usage:"ISO 4217 currency code"`
}

// PayPalConfig configures the PayPal order gateway.
type PayPalConfig struct {
	BaseURL  string `default:"https://api-m.sandbox.paypal.com" usage:"PayPal API root" flag:"paypal-base-url"`
	ClientID string `usage:"PayPal OAuth client id (STORE_PAYPAL_CLIENT_ID)" flag:"paypal-client-id"`
	Secret   string `usage:"PayPal OAuth client secret (STORE_PAYPAL_SECRET)" flag:"paypal-secret"`
}

// AnalyticsConfig configures activity tracking delivery.
type AnalyticsConfig struct {
	Brokers []string `usage:"Kafka brokers for activity events; empty disables delivery" flag:"kafka-brokers"`
	Topic   string   `default:"storefront.activity" usage:"Kafka topic for activity events" flag:"kafka-topic"`
	Buffer  int      `default:"1024" usage:"In-memory analytics queue size"`
	// SpoolDir holds compressed events that failed to publish, replayed on
	// the next start. Empty disables the spool.
	SpoolDir string `default:"./data/spool" usage:"Directory for the analytics failure spool" flag:"spool-dir"`
}

// SessionConfig controls storefront session lifetime.
type SessionConfig struct {
	TTL              time.Duration `default:"24h" usage:"Idle time before a session is evicted from memory" flag:"session-ttl"`
	EvictionInterval time.Duration `default:"10m" usage:"How often idle sessions are scanned" flag:"eviction-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Catalog.BaseURL == "" {
		return nil, errors.New("catalog base URL is required: set STORE_CATALOG_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
