package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Agent      AgentConfig      `yaml:"agent"`
	Retry      RetryConfig      `yaml:"retry"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port             int           `yaml:"port"`
	RateLimitPerSec  float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds  int           `yaml:"cache_ttl_seconds"`
	CacheTTL         time.Duration `yaml:"-"`
	ShutdownSeconds  int           `yaml:"shutdown_seconds"`
	ShutdownDeadline time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AuthConfig holds the identity provider token settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// StorageConfig holds the S3-compatible blob store settings.
type StorageConfig struct {
	Endpoint                 string        `yaml:"endpoint"`
	Region                   string        `yaml:"region"`
	Bucket                   string        `yaml:"bucket"`
	AccessKey                string        `yaml:"access_key"`
	SecretKey                string        `yaml:"secret_key"`
	UseSSL                   bool          `yaml:"use_ssl"`
	UsePathStyle             bool          `yaml:"use_path_style"`
	PresignExpirationSeconds int           `yaml:"presign_expiration_seconds"`
	PresignExpiration        time.Duration `yaml:"-"`
}

// AgentConfig holds the settings for talking to the external agent.
type AgentConfig struct {
	RedisAddr                string        `yaml:"redis_addr"`
	RedisPassword            string        `yaml:"redis_password"`
	RedisDB                  int           `yaml:"redis_db"`
	Stream                   string        `yaml:"stream"`
	StreamMaxLen             int64         `yaml:"stream_max_len"`
	RelayIntervalSeconds     int           `yaml:"relay_interval_seconds"`
	RelayInterval            time.Duration `yaml:"-"`
	RelayBatchSize           int           `yaml:"relay_batch_size"`
	ComparisonTimeoutSeconds int           `yaml:"comparison_timeout_seconds"`
	ComparisonTimeout        time.Duration `yaml:"-"`
	MaxComparisonAttempts    int           `yaml:"max_comparison_attempts"`
	WatchdogIntervalSeconds  int           `yaml:"watchdog_interval_seconds"`
	WatchdogInterval         time.Duration `yaml:"-"`
}

// RetryConfig bounds the backoff applied to store calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialIntervalMS int           `yaml:"initial_interval_ms"`
	InitialInterval   time.Duration `yaml:"-"`
	MaxIntervalMS     int           `yaml:"max_interval_ms"`
	MaxInterval       time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset value and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.ShutdownSeconds <= 0 {
		cfg.Server.ShutdownSeconds = 5
	}
	cfg.Server.ShutdownDeadline = time.Duration(cfg.Server.ShutdownSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "roomcheck"
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpirationSeconds <= 0 {
		cfg.Storage.PresignExpirationSeconds = 900
	}
	cfg.Storage.PresignExpiration = time.Duration(cfg.Storage.PresignExpirationSeconds) * time.Second

	if cfg.Agent.Stream == "" {
		cfg.Agent.Stream = "roomcheck:agent"
	}
	if cfg.Agent.StreamMaxLen <= 0 {
		cfg.Agent.StreamMaxLen = 10000
	}
	if cfg.Agent.RelayIntervalSeconds <= 0 {
		cfg.Agent.RelayIntervalSeconds = 2
	}
	cfg.Agent.RelayInterval = time.Duration(cfg.Agent.RelayIntervalSeconds) * time.Second
	if cfg.Agent.RelayBatchSize <= 0 {
		cfg.Agent.RelayBatchSize = 100
	}
	if cfg.Agent.ComparisonTimeoutSeconds <= 0 {
		cfg.Agent.ComparisonTimeoutSeconds = 900
	}
	cfg.Agent.ComparisonTimeout = time.Duration(cfg.Agent.ComparisonTimeoutSeconds) * time.Second
	if cfg.Agent.MaxComparisonAttempts <= 0 {
		cfg.Agent.MaxComparisonAttempts = 3
	}
	if cfg.Agent.WatchdogIntervalSeconds <= 0 {
		cfg.Agent.WatchdogIntervalSeconds = 60
	}
	cfg.Agent.WatchdogInterval = time.Duration(cfg.Agent.WatchdogIntervalSeconds) * time.Second

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.InitialIntervalMS <= 0 {
		cfg.Retry.InitialIntervalMS = 100
	}
	cfg.Retry.InitialInterval = time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond
	if cfg.Retry.MaxIntervalMS <= 0 {
		cfg.Retry.MaxIntervalMS = 2000
	}
	cfg.Retry.MaxInterval = time.Duration(cfg.Retry.MaxIntervalMS) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
}

// Validate rejects configurations the service cannot start with.
func (cfg *Config) Validate() error {
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
