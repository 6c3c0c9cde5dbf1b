package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/session"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Record store (subscription records live in another service)
	RecordStoreURL        string
	RecordStoreMaxRetries int
	RecordStoreRetryDelay time.Duration
	RecordStoreTimeout    time.Duration
	SessionCookieName     string

	// Stripe Billing Configuration
	// In development the mock provider is used when the secret key is empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Hosted checkout
	CheckoutProductName string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	// Storage Configuration
	StorageProvider string // "local" or "r2"
	TierDocumentKey string

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // optional, overrides the account endpoint

	// Quote cache
	CacheProvider    string // "memory", "redis" or "none"
	CacheMemoryItems int
	CacheTTL         time.Duration
	RedisAddrs       []string
	RedisPassword    string
	RedisCluster     bool
	RedisNamespace   string

	// Request limits
	MaxAssetCount     int64
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Worker Configuration
	WorkerEnabled         bool
	WorkerConcurrency     int
	WorkerPollInterval    time.Duration
	WorkerMaxBatch        int
	WorkerJobTimeout      time.Duration
	WorkerShutdownTimeout time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		RecordStoreMaxRetries: getEnvInt("RECORD_STORE_MAX_RETRIES", 3),
		RecordStoreRetryDelay: getEnvDuration("RECORD_STORE_RETRY_BASE_DELAY", 200*time.Millisecond),
		RecordStoreTimeout:    getEnvDuration("RECORD_STORE_TIMEOUT", 10*time.Second),
		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", session.CookieName),

		// Stripe billing (optional, the mock provider works without these)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		CheckoutProductName: getEnv("CHECKOUT_PRODUCT_NAME", "Relay subscription"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/billing/cancel"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		TierDocumentKey:  getEnv("TIER_DOCUMENT_KEY", "pricing/tiers.yaml"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		CacheProvider:    getEnv("CACHE_PROVIDER", "memory"),
		CacheMemoryItems: getEnvInt("CACHE_MEMORY_ENTRIES", 1024),
		CacheTTL:         getEnvDuration("CACHE_TTL", 10*time.Minute),
		RedisAddrs:       getEnvList("REDIS_ADDRS", []string{"localhost:6379"}),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisCluster:     getEnvBool("REDIS_CLUSTER", false),
		RedisNamespace:   getEnv("REDIS_NAMESPACE", "relay"),

		MaxAssetCount:     int64(getEnvInt("MAX_ASSET_COUNT", 100000)),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Worker defaults
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerMaxBatch:        getEnvInt("WORKER_MAX_BATCH", 10),
		WorkerJobTimeout:      getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),
		WorkerShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.RecordStoreURL = os.Getenv("RECORD_STORE_URL")
	if cfg.RecordStoreURL == "" {
		return nil, fmt.Errorf("RECORD_STORE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" && cfg.R2Endpoint == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate cache configuration
	switch cfg.CacheProvider {
	case "memory":
		if cfg.CacheMemoryItems < 1 {
			return nil, fmt.Errorf("CACHE_MEMORY_ENTRIES must be at least 1, got: %d", cfg.CacheMemoryItems)
		}
	case "redis":
		if len(cfg.RedisAddrs) == 0 {
			return nil, fmt.Errorf("REDIS_ADDRS is required when CACHE_PROVIDER is 'redis'")
		}
	case "none":
	default:
		return nil, fmt.Errorf("CACHE_PROVIDER must be 'memory', 'redis' or 'none', got: %s", cfg.CacheProvider)
	}

	// Stripe keys come as a pair
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	if cfg.MaxAssetCount < 1 {
		return nil, fmt.Errorf("MAX_ASSET_COUNT must be at least 1, got: %d", cfg.MaxAssetCount)
	}
	if cfg.RateLimitRequests < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", cfg.RateLimitRequests)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseMockBilling reports whether billing calls go to the in-process mock.
func (c *Config) UseMockBilling() bool {
	return c.StripeSecretKey == ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList parses a comma-separated variable, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
