package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Authority  AuthorityConfig
	Encryption EncryptionConfig
	BankAPI    BankAPIConfig
	RateLimit  RateLimitConfig
	Scheduler  SchedulerConfig
	Session    SessionConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthorityConfig points at the external OAuth authority that issued the
// bearer sessions we validate. Token issuance stays on their side.
type AuthorityConfig struct {
	BaseURL string
	Timeout time.Duration
}

type EncryptionConfig struct {
	Key string
}

type BankAPIConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookURL   string
	Products     []string
	Timeout      time.Duration
}

type RateLimitConfig struct {
	Threshold int
	Window    time.Duration
}

type SchedulerConfig struct {
	Enabled        bool
	SweepInterval  time.Duration
	SweepBatchSize int
	WorkerCount    int
	QueueSize      int
}

// SessionConfig bounds the in-process session cache.
type SessionConfig struct {
	TTL time.Duration
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	MessagesFile    string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	authorityTimeout, err := time.ParseDuration(getEnv("AUTHORITY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTHORITY_TIMEOUT: %w", err)
	}

	// Provider calls carry their own deadline, distinct from the inbound
	// request timeout: link and exchange are synchronous from the caller's
	// perspective and must not hang for the full server write timeout.
	bankTimeout, err := time.ParseDuration(getEnv("BANK_API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BANK_API_TIMEOUT: %w", err)
	}

	rateLimitThreshold, err := strconv.Atoi(getEnv("RATE_LIMIT_THRESHOLD", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_THRESHOLD: %w", err)
	}
	rateLimitWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	// Parse scheduler configuration
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true)
	sweepInterval, err := time.ParseDuration(getEnv("SCHEDULER_SWEEP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_SWEEP_INTERVAL: %w", err)
	}
	sweepBatchSize, err := strconv.Atoi(getEnv("SCHEDULER_SWEEP_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_SWEEP_BATCH_SIZE: %w", err)
	}
	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_CACHE_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_CACHE_TTL: %w", err)
	}

	// Parse TLS configuration
	tlsEnabled := getBoolEnv("TLS_ENABLED", false)
	tlsCertPath := getEnv("TLS_CERT_PATH", "")
	tlsKeyPath := getEnv("TLS_KEY_PATH", "")
	tlsRedirectHTTP := getBoolEnv("TLS_REDIRECT_HTTP", false)

	// Parse allowed hosts (comma-separated list)
	allowedHostsStr := getEnv("ALLOWED_HOSTS", "")
	var allowedHosts []string
	if allowedHostsStr != "" {
		for _, host := range strings.Split(allowedHostsStr, ",") {
			host = strings.TrimSpace(host)
			if host != "" {
				allowedHosts = append(allowedHosts, host)
			}
		}
	}

	// Webhook callback URL defaults to HOST_URL plus the fixed receiver path
	hostURL := getEnv("HOST_URL", "")
	webhookURL := getEnv("BANK_API_WEBHOOK_URL", "")
	if webhookURL == "" && hostURL != "" {
		webhookURL = hostURL + "/api/webhooks/bank"
	}

	var products []string
	for _, p := range strings.Split(getEnv("BANK_API_PRODUCTS", "transactions"), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			products = append(products, p)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "bancora"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "bancora"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Authority: AuthorityConfig{
			BaseURL: getEnv("AUTHORITY_BASE_URL", ""),
			Timeout: authorityTimeout,
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		BankAPI: BankAPIConfig{
			BaseURL:      getEnv("BANK_API_BASE_URL", ""),
			ClientID:     getEnv("BANK_API_CLIENT_ID", ""),
			ClientSecret: getEnv("BANK_API_CLIENT_SECRET", ""),
			WebhookURL:   webhookURL,
			Products:     products,
			Timeout:      bankTimeout,
		},
		RateLimit: RateLimitConfig{
			Threshold: rateLimitThreshold,
			Window:    rateLimitWindow,
		},
		Scheduler: SchedulerConfig{
			Enabled:        schedulerEnabled,
			SweepInterval:  sweepInterval,
			SweepBatchSize: sweepBatchSize,
			WorkerCount:    schedulerWorkers,
			QueueSize:      schedulerQueueSize,
		},
		Session: SessionConfig{
			TTL: sessionTTL,
		},
		TLS: TLSConfig{
			Enabled:      tlsEnabled,
			CertPath:     tlsCertPath,
			KeyPath:      tlsKeyPath,
			RedirectHTTP: tlsRedirectHTTP,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "bancora-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields
	if cfg.Authority.BaseURL == "" {
		return nil, fmt.Errorf("AUTHORITY_BASE_URL is required")
	}
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}
	if cfg.BankAPI.BaseURL == "" {
		return nil, fmt.Errorf("BANK_API_BASE_URL is required")
	}
	if cfg.RateLimit.Threshold < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_THRESHOLD must be at least 1")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
