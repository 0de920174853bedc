package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (POS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (POS_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Timezone     string `default:"Asia/Jakarta" usage:"Business day timezone for reports"`
	QRSize       int    `default:"256" usage:"Edge length of payment QR images in pixels" flag:"qr-size"`
	Merchant     MerchantConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	AMQP         AMQPConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// MerchantConfig identifies the shop inside QRIS payloads.
type MerchantConfig struct {
	Name       string `default:"Warung" usage:"Merchant name printed in QRIS payloads"`
	City       string `default:"Jakarta" usage:"Merchant city"`
	ID         string `default:"ID1020000000000" usage:"Merchant PAN registered with the acquirer" flag:"merchant-id"`
	Category   string `default:"5812" usage:"ISO 18245 merchant category code" flag:"merchant-category"`
	PostalCode string `default:"" usage:"Merchant postal code" flag:"merchant-postal-code"`
}

// RedisConfig enables the checkout idempotency cache when Addr is set.
type RedisConfig struct {
	Addr           string        `default:"" usage:"Redis address (host:port); empty disables idempotency keys"`
	Password       string        `default:"" usage:"Redis password"`
	DB             int           `default:"0" usage:"Redis database number"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long Idempotency-Key replays are honoured" flag:"idempotency-ttl"`
}

// KafkaConfig enables the order event topic when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"pos.orders" usage:"Kafka topic for order events"`
}

// AMQPConfig enables the order event exchange when URL is set.
type AMQPConfig struct {
	URL      string `default:"" usage:"AMQP broker URL"`
	Exchange string `default:"pos.orders" usage:"Topic exchange for order events"`
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
		EnvPrefix: "POS",
		Files:     []string{"config.yaml", "/etc/pos/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set POS_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("api key pepper is required: set POS_API_KEY_PEPPER")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	if c.QRSize < 64 {
		return errors.Errorf("qr size %d is too small", c.QRSize)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
