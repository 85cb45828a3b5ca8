// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Commission  CommissionConfig
	Retry       RetryConfig
	WalletCache WalletCacheConfig
	Jobs        JobsConfig
	Log         LogConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	CORSOrigins  []string
	// Requests per second and burst per client IP.
	RateLimitRPS          float64
	RateLimitBurst        int
	WebhookRateLimitRPS   float64
	WebhookRateLimitBurst int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	ClientID    string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	ArchiveBucket   string
}

type PaymentConfig struct {
	Provider string // asaas | stripe
	Asaas    AsaasConfig
	Stripe   StripeConfig
}

type AsaasConfig struct {
	APIKey       string
	BaseURL      string
	WebhookToken string
	Timeout      time.Duration
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

type CommissionConfig struct {
	N1Rate         int
	N2Rate         int
	N3Rate         int
	Manager1Name   string
	Manager1Wallet string
	Manager1Rate   int
	Manager2Name   string
	Manager2Wallet string
	Manager2Rate   int
	FactoryName    string
	FactoryWallet  string
	PlanFile       string
	TriggerKinds   []string
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Timeout     time.Duration
}

type WalletCacheConfig struct {
	Backend     string // postgres | redis
	TTL         time.Duration
	NegativeTTL time.Duration
}

type JobsConfig struct {
	SplitRetryEnabled     bool
	SplitRetryInterval    time.Duration
	SplitRetryMaxAttempts int
	SplitRetryWorkers     int
	SplitRetryBatchSize   int
	// Confirmed payments younger than this are left to the webhook flow.
	SplitProcessGrace time.Duration
	// Pending splits untouched for this long are reported as stale.
	SplitStaleAfter time.Duration
}

type LogConfig struct {
	Level      string
	Format     string // text | json
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			CORSOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

			RateLimitRPS:          getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
			WebhookRateLimitRPS:   getEnvAsFloat("WEBHOOK_RATE_LIMIT_RPS", 50),
			WebhookRateLimitBurst: getEnvAsInt("WEBHOOK_RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "commissions"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsSlice("KAFKA_BROKERS", nil),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "commission"),
			ClientID:    getEnv("KAFKA_CLIENT_ID", "commission-backend"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "sa-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			ArchiveBucket:   getEnv("WEBHOOK_ARCHIVE_BUCKET", ""),
		},
		Payment: PaymentConfig{
			Provider: strings.ToLower(getEnv("PAYMENT_PROVIDER", "asaas")),
			Asaas: AsaasConfig{
				APIKey:       getEnv("ASAAS_API_KEY", ""),
				BaseURL:      getEnv("ASAAS_BASE_URL", "https://sandbox.asaas.com/api"),
				WebhookToken: getEnv("ASAAS_WEBHOOK_TOKEN", ""),
				Timeout:      getEnvAsDuration("ASAAS_TIMEOUT", 15*time.Second),
			},
			Stripe: StripeConfig{
				SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
				Currency:  getEnv("STRIPE_CURRENCY", "brl"),
			},
		},
		Commission: CommissionConfig{
			N1Rate:         getEnvAsInt("COMMISSION_N1_BP", 1500),
			N2Rate:         getEnvAsInt("COMMISSION_N2_BP", 300),
			N3Rate:         getEnvAsInt("COMMISSION_N3_BP", 200),
			Manager1Name:   getEnv("MANAGER_1_NAME", "Renum"),
			Manager1Wallet: getEnv("MANAGER_1_WALLET_ID", ""),
			Manager1Rate:   getEnvAsInt("MANAGER_1_BP", 500),
			Manager2Name:   getEnv("MANAGER_2_NAME", "JB"),
			Manager2Wallet: getEnv("MANAGER_2_WALLET_ID", ""),
			Manager2Rate:   getEnvAsInt("MANAGER_2_BP", 500),
			FactoryName:    getEnv("FACTORY_NAME", "Fábrica"),
			FactoryWallet:  getEnv("FACTORY_WALLET_ID", ""),
			PlanFile:       getEnv("COMMISSION_PLAN_FILE", ""),
			TriggerKinds:   getEnvAsSlice("COMMISSION_TRIGGER_KINDS", []string{"membership", "subscription"}),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
			Multiplier:  getEnvAsFloat("RETRY_MULTIPLIER", 2),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
			Timeout:     getEnvAsDuration("RETRY_CALL_TIMEOUT", 15*time.Second),
		},
		WalletCache: WalletCacheConfig{
			Backend:     strings.ToLower(getEnv("WALLET_CACHE_BACKEND", "postgres")),
			TTL:         getEnvAsDuration("WALLET_CACHE_TTL", time.Hour),
			NegativeTTL: getEnvAsDuration("WALLET_NEGATIVE_CACHE_TTL", 10*time.Minute),
		},
		Jobs: JobsConfig{
			SplitRetryEnabled:     getEnvAsBool("SPLIT_RETRY_ENABLED", true),
			SplitRetryInterval:    getEnvAsDuration("SPLIT_RETRY_INTERVAL", 5*time.Minute),
			SplitRetryMaxAttempts: getEnvAsInt("SPLIT_RETRY_MAX_ATTEMPTS", 5),
			SplitRetryWorkers:     getEnvAsInt("SPLIT_RETRY_WORKERS", 4),
			SplitRetryBatchSize:   getEnvAsInt("SPLIT_RETRY_BATCH_SIZE", 50),
			SplitProcessGrace:     getEnvAsDuration("SPLIT_PROCESS_GRACE", 10*time.Minute),
			SplitStaleAfter:       getEnvAsDuration("SPLIT_STALE_AFTER", 30*time.Minute),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", ""),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "pt_BR"),
		},
	}

	if config.Commission.PlanFile != "" {
		if err := config.Commission.applyPlanFile(config.Commission.PlanFile); err != nil {
			return nil, err
		}
	}

	return config, config.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.IsProduction() {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("database password is required in production")
	}

	switch c.Payment.Provider {
	case "asaas":
		if c.IsProduction() && (c.Payment.Asaas.APIKey == "" || c.Payment.Asaas.WebhookToken == "") {
			return fmt.Errorf("ASAAS_API_KEY and ASAAS_WEBHOOK_TOKEN are required in production")
		}
	case "stripe":
		if c.Payment.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("unsupported payment provider %q", c.Payment.Provider)
	}

	switch c.WalletCache.Backend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("unsupported wallet cache backend %q", c.WalletCache.Backend)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if _, err := c.Commission.Plan(); err != nil {
		return fmt.Errorf("invalid commission plan: %w", err)
	}

	if c.IsProduction() && (c.Commission.Manager1Wallet == "" || c.Commission.Manager2Wallet == "") {
		return fmt.Errorf("manager wallet ids are required in production")
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
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
