package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const redactedPlaceholder = "***"

// Config holds all application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Notification NotificationConfig `mapstructure:"notification"`
	Inventory    InventoryConfig    `mapstructure:"inventory"`
	Booking      BookingConfig      `mapstructure:"booking"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Sweeper      SweeperConfig      `mapstructure:"sweeper"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Health       HealthConfig       `mapstructure:"health"`
	OTel         OTelConfig         `mapstructure:"otel"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// DSN returns the PostgreSQL connection string. Never log this value.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	PoolSize          int           `mapstructure:"pool_size"`
	MinIdleConns      int           `mapstructure:"min_idle_conns"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	AvailabilityTTL   time.Duration `mapstructure:"availability_ttl"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
	IdempotencyEnable bool          `mapstructure:"idempotency_enable"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
}

// PaymentConfig holds payment provider settings
type PaymentConfig struct {
	Provider       string        `mapstructure:"provider"` // stripe or mock
	APIKey         string        `mapstructure:"api_key"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	ProductName    string        `mapstructure:"product_name"`
	SuccessURL     string        `mapstructure:"success_url"`
	CancelURL      string        `mapstructure:"cancel_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"` // 0 = return held, confirm via webhook
}

// NotificationConfig holds ticket email provider settings
type NotificationConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	SenderEmail    string        `mapstructure:"sender_email"`
	SenderName     string        `mapstructure:"sender_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// InventoryConfig holds seat engine settings
type InventoryConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity"`
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	OCCMaxRetries int           `mapstructure:"occ_max_retries"`
	HoldDuration  time.Duration `mapstructure:"hold_duration"`
}

// BookingConfig holds booking saga settings
type BookingConfig struct {
	CarrierCode    string `mapstructure:"carrier_code"`
	PnrMaxAttempts int    `mapstructure:"pnr_max_attempts"`
	OCCMaxRetries  int    `mapstructure:"occ_max_retries"`
}

// OutboxConfig holds outbox publisher settings
type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// SweeperConfig holds expired hold sweeper settings
type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	PageSize int           `mapstructure:"page_size"`
}

// JWTConfig holds manage-booking token settings
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string        `mapstructure:"issuer"`
}

// HealthConfig holds health endpoint settings
type HealthConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// Read from .env file (optional), env vars still apply when it is absent
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Fall through to environment variables
		}
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "aeroreserve")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "15s")

	// Database defaults
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "aeroreserve")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MIN_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "30m")
	v.SetDefault("DATABASE_CONNECT_TIMEOUT", "10s")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("REDIS_AVAILABILITY_TTL", "30s")
	v.SetDefault("REDIS_IDEMPOTENCY_TTL", "24h")
	v.SetDefault("REDIS_IDEMPOTENCY_ENABLE", true)

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "aeroreserve")

	// Payment defaults
	v.SetDefault("PAYMENT_PROVIDER", "mock")
	v.SetDefault("PAYMENT_API_KEY", "")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_PRODUCT_NAME", "Flight booking")
	v.SetDefault("PAYMENT_SUCCESS_URL", "http://localhost:3000/booking/success")
	v.SetDefault("PAYMENT_CANCEL_URL", "http://localhost:3000/booking/cancelled")
	v.SetDefault("PAYMENT_REQUEST_TIMEOUT", "30s")
	v.SetDefault("PAYMENT_MAX_RETRIES", 3)
	v.SetDefault("PAYMENT_POLL_INTERVAL", "3s")
	v.SetDefault("PAYMENT_POLL_TIMEOUT", "0s")

	// Notification defaults
	v.SetDefault("NOTIFICATION_BASE_URL", "http://localhost:8025")
	v.SetDefault("NOTIFICATION_API_KEY", "")
	v.SetDefault("NOTIFICATION_SENDER_EMAIL", "tickets@aeroreserve.dev")
	v.SetDefault("NOTIFICATION_SENDER_NAME", "AeroReserve")
	v.SetDefault("NOTIFICATION_REQUEST_TIMEOUT", "10s")
	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)

	// Inventory engine defaults
	v.SetDefault("INVENTORY_QUEUE_CAPACITY", 500)
	v.SetDefault("INVENTORY_MAX_BATCH_SIZE", 50)
	v.SetDefault("INVENTORY_OCC_MAX_RETRIES", 10)
	v.SetDefault("INVENTORY_HOLD_DURATION", "30m")

	// Booking saga defaults
	v.SetDefault("BOOKING_CARRIER_CODE", "731")
	v.SetDefault("BOOKING_PNR_MAX_ATTEMPTS", 100)
	v.SetDefault("BOOKING_OCC_MAX_RETRIES", 3)

	// Outbox publisher defaults
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_MAX_RETRIES", 3)
	v.SetDefault("OUTBOX_RETENTION_DAYS", 7)

	// Sweeper defaults
	v.SetDefault("SWEEPER_INTERVAL", "60s")
	v.SetDefault("SWEEPER_PAGE_SIZE", 100)

	// JWT defaults
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("JWT_TOKEN_TTL", "24h")
	v.SetDefault("JWT_ISSUER", "aeroreserve")

	// Health defaults
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	v.SetDefault("HEALTH_CACHE_TTL", "10s")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "aeroreserve")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")
	cfg.Server.ShutdownTimeout = v.GetDuration("SERVER_SHUTDOWN_TIMEOUT")

	// Database
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxOpenConns = v.GetInt("DATABASE_MAX_OPEN_CONNS")
	cfg.Database.MinIdleConns = v.GetInt("DATABASE_MIN_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")
	cfg.Database.ConnectTimeout = v.GetDuration("DATABASE_CONNECT_TIMEOUT")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")
	cfg.Redis.AvailabilityTTL = v.GetDuration("REDIS_AVAILABILITY_TTL")
	cfg.Redis.IdempotencyTTL = v.GetDuration("REDIS_IDEMPOTENCY_TTL")
	cfg.Redis.IdempotencyEnable = v.GetBool("REDIS_IDEMPOTENCY_ENABLE")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = strings.Split(v.GetString("KAFKA_BROKERS"), ",")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	// Payment
	cfg.Payment.Provider = v.GetString("PAYMENT_PROVIDER")
	cfg.Payment.APIKey = v.GetString("PAYMENT_API_KEY")
	cfg.Payment.WebhookSecret = v.GetString("PAYMENT_WEBHOOK_SECRET")
	cfg.Payment.ProductName = v.GetString("PAYMENT_PRODUCT_NAME")
	cfg.Payment.SuccessURL = v.GetString("PAYMENT_SUCCESS_URL")
	cfg.Payment.CancelURL = v.GetString("PAYMENT_CANCEL_URL")
	cfg.Payment.RequestTimeout = v.GetDuration("PAYMENT_REQUEST_TIMEOUT")
	cfg.Payment.MaxRetries = v.GetInt("PAYMENT_MAX_RETRIES")
	cfg.Payment.PollInterval = v.GetDuration("PAYMENT_POLL_INTERVAL")
	cfg.Payment.PollTimeout = v.GetDuration("PAYMENT_POLL_TIMEOUT")

	// Notification
	cfg.Notification.BaseURL = v.GetString("NOTIFICATION_BASE_URL")
	cfg.Notification.APIKey = v.GetString("NOTIFICATION_API_KEY")
	cfg.Notification.SenderEmail = v.GetString("NOTIFICATION_SENDER_EMAIL")
	cfg.Notification.SenderName = v.GetString("NOTIFICATION_SENDER_NAME")
	cfg.Notification.RequestTimeout = v.GetDuration("NOTIFICATION_REQUEST_TIMEOUT")
	cfg.Notification.MaxRetries = v.GetInt("NOTIFICATION_MAX_RETRIES")

	// Inventory
	cfg.Inventory.QueueCapacity = v.GetInt("INVENTORY_QUEUE_CAPACITY")
	cfg.Inventory.MaxBatchSize = v.GetInt("INVENTORY_MAX_BATCH_SIZE")
	cfg.Inventory.OCCMaxRetries = v.GetInt("INVENTORY_OCC_MAX_RETRIES")
	cfg.Inventory.HoldDuration = v.GetDuration("INVENTORY_HOLD_DURATION")

	// Booking
	cfg.Booking.CarrierCode = v.GetString("BOOKING_CARRIER_CODE")
	cfg.Booking.PnrMaxAttempts = v.GetInt("BOOKING_PNR_MAX_ATTEMPTS")
	cfg.Booking.OCCMaxRetries = v.GetInt("BOOKING_OCC_MAX_RETRIES")

	// Outbox
	cfg.Outbox.PollInterval = v.GetDuration("OUTBOX_POLL_INTERVAL")
	cfg.Outbox.BatchSize = v.GetInt("OUTBOX_BATCH_SIZE")
	cfg.Outbox.MaxRetries = v.GetInt("OUTBOX_MAX_RETRIES")
	cfg.Outbox.RetentionDays = v.GetInt("OUTBOX_RETENTION_DAYS")

	// Sweeper
	cfg.Sweeper.Interval = v.GetDuration("SWEEPER_INTERVAL")
	cfg.Sweeper.PageSize = v.GetInt("SWEEPER_PAGE_SIZE")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.TokenTTL = v.GetDuration("JWT_TOKEN_TTL")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// Health
	cfg.Health.CheckTimeout = v.GetDuration("HEALTH_CHECK_TIMEOUT")
	cfg.Health.CacheTTL = v.GetDuration("HEALTH_CACHE_TTL")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and dbname are required")
	}

	if c.Payment.Provider != "stripe" && c.Payment.Provider != "mock" {
		return fmt.Errorf("unknown payment provider: %s", c.Payment.Provider)
	}
	if c.Payment.Provider == "stripe" && c.Payment.APIKey == "" {
		return fmt.Errorf("payment api key is required for the stripe provider")
	}

	if c.Inventory.QueueCapacity <= 0 {
		return fmt.Errorf("inventory queue capacity must be positive: %d", c.Inventory.QueueCapacity)
	}
	if c.Inventory.HoldDuration <= 0 {
		return fmt.Errorf("inventory hold duration must be positive: %s", c.Inventory.HoldDuration)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.IsProduction() && c.JWT.Secret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT secret must be changed in production")
	}

	return nil
}

// Redacted returns a copy safe to log: every credential is replaced with a
// placeholder.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = redactedPlaceholder
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redactedPlaceholder
	}
	if out.Payment.APIKey != "" {
		out.Payment.APIKey = redactedPlaceholder
	}
	if out.Payment.WebhookSecret != "" {
		out.Payment.WebhookSecret = redactedPlaceholder
	}
	if out.Notification.APIKey != "" {
		out.Notification.APIKey = redactedPlaceholder
	}
	out.JWT.Secret = redactedPlaceholder
	return out
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
