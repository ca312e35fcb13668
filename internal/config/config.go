package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	LLM      LLMConfig
	Quota    QuotaConfig
	PayPal   PayPalConfig
	Stripe   StripeConfig
	Archive  ArchiveConfig
	Worker   WorkerConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
	RateLimit       float64
	RateBurst       int
}

// IsDevelopment reports whether the server runs in development mode
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// IsProduction reports whether the server runs in production mode
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	URL             string
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// AuthConfig contains session configuration
type AuthConfig struct {
	SessionSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BCryptCost         int
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	EventTTL time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// LLMConfig configures the assistant model
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// PromptProfile selects the system prompt: supportive or clinical
	PromptProfile string
}

// QuotaConfig configures the free message allowance
type QuotaConfig struct {
	FreeMessageLimit int
	UpgradeURL       string
}

// PayPalConfig holds PayPal REST credentials. An empty client id disables PayPal.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	PlanID       string
	Environment  string // sandbox or live
}

// Enabled reports whether PayPal credentials are configured
func (p PayPalConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// BaseURL returns the REST endpoint for the configured environment
func (p PayPalConfig) BaseURL() string {
	if p.Environment == "live" {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

// StripeConfig holds Stripe credentials. An empty secret key disables Stripe.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

// Enabled reports whether Stripe credentials are configured
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != ""
}

// ArchiveConfig configures the conversation export bucket
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether an archive bucket is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// WorkerConfig contains cron schedules for background jobs
type WorkerConfig struct {
	Enabled        bool
	HealthSchedule string
	ArchiveSpec    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDatabase loads only the database section, for tools that never serve
// requests.
func LoadDatabase() (DatabaseConfig, error) {
	cfg := fromEnv()
	if err := cfg.Database.validate(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg.Database, nil
}

func fromEnv() *Config {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	frontend := getEnv("FRONTEND_URL", "http://localhost:5173")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("PORT", getEnvAsInt("SERVER_PORT", 5000)),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     frontend,
			Environment:     getEnv("ENVIRONMENT", "development"),
			RateLimit:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
			RateBurst:       getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			Path:            getEnv("DB_PATH", "./nflow.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			SessionSecret:      getEnv("SESSION_SECRET", ""),
			AccessTokenExpiry:  getEnvAsDuration("SESSION_ACCESS_EXPIRY", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("SESSION_REFRESH_EXPIRY", 7*24*time.Hour),
			BCryptCost:         getEnvAsInt("BCRYPT_COST", 10),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			EventTTL: getEnvAsDuration("WEBHOOK_EVENT_TTL", 7*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o"),
			Temperature:   float32(getEnvAsFloat("OPENAI_TEMPERATURE", 0.7)),
			MaxTokens:     getEnvAsInt("OPENAI_MAX_TOKENS", 500),
			Timeout:       getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			PromptProfile: getEnv("LLM_PROMPT_PROFILE", "supportive"),
		},
		Quota: QuotaConfig{
			FreeMessageLimit: getEnvAsInt("FREE_MESSAGE_LIMIT", 3),
			UpgradeURL:       getEnv("UPGRADE_URL", "/subscriptions"),
		},
		PayPal: PayPalConfig{
			ClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
			WebhookID:    getEnv("PAYPAL_WEBHOOK_ID", ""),
			PlanID:       getEnv("PAYPAL_PLAN_ID", ""),
			Environment:  getEnv("PAYPAL_ENVIRONMENT", "sandbox"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:       getEnv("STRIPE_PRICE_ID", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", frontend+"/chat?subscribed=1"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", frontend+"/subscriptions"),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Prefix:          getEnv("ARCHIVE_PREFIX", "conversations"),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
		Worker: WorkerConfig{
			Enabled:        getEnvAsBool("WORKER_ENABLED", true),
			HealthSchedule: getEnv("WORKER_HEALTH_SCHEDULE", "@every 1m"),
			ArchiveSpec:    getEnv("WORKER_ARCHIVE_SCHEDULE", "0 3 * * *"),
		},
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set")
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.Quota.FreeMessageLimit < 0 {
		return fmt.Errorf("FREE_MESSAGE_LIMIT must not be negative: %d", c.Quota.FreeMessageLimit)
	}

	if c.Stripe.Enabled() && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET must be set when Stripe is enabled")
	}

	if c.PayPal.Enabled() && c.PayPal.WebhookID == "" {
		return fmt.Errorf("PAYPAL_WEBHOOK_ID must be set when PayPal is enabled")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Driver {
	case "postgres":
		if d.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	case "sqlite":
		if d.Path == "" {
			return fmt.Errorf("DB_PATH must be set when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", d.Driver)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
