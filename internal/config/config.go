package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	Backend  BackendConfig
	Checkout CheckoutConfig
	Database DatabaseConfig
	Paystack PaystackConfig
	Orders   OrdersConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	Env           string
	PublicBaseURL string // absolute URL buyers reach the server on
}

type SessionConfig struct {
	Secret string
	Store  string // cookie or filesystem
	Dir    string // filesystem store directory
	MaxAge int    // seconds
}

// Backend modes
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

type BackendConfig struct {
	Mode      string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	ExposeAPI bool // serve the backend API from this process in local mode
}

type CheckoutConfig struct {
	MaxQuantity        int
	PollInterval       time.Duration
	PollTimeout        time.Duration
	Invalidation       string // full or positional
	SubmitRateLimit    int    // submissions per window per client
	SubmitRateWindow   time.Duration
	AntiAbuseTokenName string // form field carrying the anti-abuse token
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PaystackConfig struct {
	SecretKey   string
	PublicKey   string
	Environment string
	BaseURL     string
}

// Enabled reports whether real Paystack credentials are configured
func (c PaystackConfig) Enabled() bool {
	return c.SecretKey != ""
}

type OrdersConfig struct {
	PaymentTTL time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Host:          getEnv("HOST", "localhost"),
			Env:           getEnv("ENV", "development"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			Store:  getEnv("SESSION_STORE", "filesystem"),
			Dir:    getEnv("SESSION_DIR", os.TempDir()),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400),
		},
		Backend: BackendConfig{
			Mode:      getEnv("BACKEND_MODE", BackendLocal),
			BaseURL:   strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
			APIKey:    getEnv("BACKEND_API_KEY", ""),
			Timeout:   getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
			ExposeAPI: getEnvAsBool("BACKEND_EXPOSE_API", false),
		},
		Checkout: CheckoutConfig{
			MaxQuantity:        getEnvAsInt("CHECKOUT_MAX_QUANTITY", 99),
			PollInterval:       getEnvAsDuration("CHECKOUT_POLL_INTERVAL", 1500*time.Millisecond),
			PollTimeout:        getEnvAsDuration("CHECKOUT_POLL_TIMEOUT", 30*time.Second),
			Invalidation:       getEnv("CHECKOUT_INVALIDATION", "full"),
			SubmitRateLimit:    getEnvAsInt("CHECKOUT_SUBMIT_RATE_LIMIT", 10),
			SubmitRateWindow:   getEnvAsDuration("CHECKOUT_SUBMIT_RATE_WINDOW", time.Minute),
			AntiAbuseTokenName: getEnv("CHECKOUT_ANTI_ABUSE_FIELD", "anti_abuse_token"),
		},
		Database: parseDatabaseConfig(),
		Paystack: PaystackConfig{
			SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			PublicKey:   getEnv("PAYSTACK_PUBLIC_KEY", ""),
			Environment: getEnv("PAYSTACK_ENVIRONMENT", "test"),
			BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		Orders: OrdersConfig{
			PaymentTTL: getEnvAsDuration("ORDER_PAYMENT_TTL", 15*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendRemote:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("BACKEND_URL is required when BACKEND_MODE is %q", BackendRemote)
		}
	case BackendLocal:
	default:
		return fmt.Errorf("invalid BACKEND_MODE %q: must be %q or %q", c.Backend.Mode, BackendRemote, BackendLocal)
	}

	switch c.Session.Store {
	case "cookie", "filesystem":
	default:
		return fmt.Errorf("invalid SESSION_STORE %q: must be cookie or filesystem", c.Session.Store)
	}

	switch c.Checkout.Invalidation {
	case "full", "positional":
	default:
		return fmt.Errorf("invalid CHECKOUT_INVALIDATION %q: must be full or positional", c.Checkout.Invalidation)
	}

	if c.Checkout.PollInterval <= 0 || c.Checkout.PollTimeout <= 0 {
		return fmt.Errorf("poll interval and timeout must be positive")
	}
	if c.Checkout.PollInterval > c.Checkout.PollTimeout {
		return fmt.Errorf("poll interval %s exceeds poll timeout %s", c.Checkout.PollInterval, c.Checkout.PollTimeout)
	}

	if c.Server.Env == "production" && c.Session.Secret == "your-secret-key-change-in-production" {
		return fmt.Errorf("SESSION_SECRET must be set in production")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func parseDatabaseConfig() DatabaseConfig {
	// Check if DATABASE_URL is provided
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" {
		return parseDatabaseURL(databaseURL)
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "event_checkout"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// Keep the raw URL; the driver reports the problem on connect
		return config
	}

	config.Host = u.Hostname()
	config.Port = 5432
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
