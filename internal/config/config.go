package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Adherence AdherenceConfig
	Alerts    AlertsConfig
	RateLimit RateLimitConfig
	Azure     AzureConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// AdherenceConfig tunes the per-session engine
type AdherenceConfig struct {
	SweepInterval time.Duration
	SaveTimeout   time.Duration
}

// AlertsConfig configures out-of-band alert delivery. Redis is optional.
type AlertsConfig struct {
	BufferSize  int
	SendTimeout time.Duration
	RedisAddr   string
	Channel     string
}

// RateLimitConfig configures the per-client request limiter
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	Storage StorageConfig
}

// StorageConfig holds Azure Blob Storage configuration
type StorageConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
	ReportContainer  string
}

// Enabled reports whether enough credentials are present to use blob storage
func (s StorageConfig) Enabled() bool {
	return s.ConnectionString != "" || (s.AccountName != "" && s.AccountKey != "")
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.allowedorigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)
	v.SetDefault("database.automigrate", true)

	// Adherence defaults
	v.SetDefault("adherence.sweepinterval", 10*time.Second)
	v.SetDefault("adherence.savetimeout", 5*time.Second)

	// Alert defaults
	v.SetDefault("alerts.buffersize", 64)
	v.SetDefault("alerts.sendtimeout", 3*time.Second)
	v.SetDefault("alerts.channel", "adherence-alerts")

	// Rate limit defaults
	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "health-reports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.allowedorigins", "CORS_ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.automigrate", "DATABASE_AUTO_MIGRATE")

	// Adherence
	v.BindEnv("adherence.sweepinterval", "SWEEP_INTERVAL")
	v.BindEnv("adherence.savetimeout", "SAVE_TIMEOUT")

	// Alerts
	v.BindEnv("alerts.buffersize", "ALERT_BUFFER_SIZE")
	v.BindEnv("alerts.redisaddr", "REDIS_ADDR")
	v.BindEnv("alerts.channel", "REDIS_CHANNEL")

	// Rate limiting
	v.BindEnv("ratelimit.rps", "RATE_LIMIT_RPS")
	v.BindEnv("ratelimit.burst", "RATE_LIMIT_BURST")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.connectionstring", "AZURE_STORAGE_CONNECTION_STRING")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Adherence.SweepInterval <= 0 {
		return fmt.Errorf("adherence.sweepinterval must be positive")
	}

	if c.Alerts.BufferSize <= 0 {
		return fmt.Errorf("alerts.buffersize must be positive")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}

	if c.Azure.Storage.AccountName != "" && c.Azure.Storage.AccountKey == "" && c.Azure.Storage.ConnectionString == "" {
		return fmt.Errorf("azure.storage.accountkey is required when an account name is set")
	}

	return nil
}
