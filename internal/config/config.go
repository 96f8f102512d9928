package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Payment  PaymentConfig
	Auth     AuthConfig
	Download DownloadConfig
}

type MongoConfig struct {
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB_NAME" envDefault:"cartdb"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	CartTTL  time.Duration `env:"CART_CACHE_TTL" envDefault:"15m"`
}

// DatabaseConfig selects the SQL store backing orders, entitlements and the catalog.
type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name       string `env:"DB_NAME" envDefault:"ecommerce"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"templateshop.db"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type PaymentConfig struct {
	SecretKey      string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret  string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	SuccessURL     string        `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL      string        `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/cart"`
	Currency       string        `env:"CHECKOUT_CURRENCY" envDefault:"USD"`
	BreakerTimeout time.Duration `env:"PAYMENT_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFails   uint32        `env:"PAYMENT_BREAKER_FAILURES" envDefault:"5"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

type DownloadConfig struct {
	PerMinute float64 `env:"DOWNLOAD_RATE_PER_MINUTE" envDefault:"30"`
	Burst     int     `env:"DOWNLOAD_RATE_BURST" envDefault:"10"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Payment.WebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
