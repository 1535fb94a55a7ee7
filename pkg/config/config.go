// Package config loads application settings from environment variables,
// optionally seeded from a .env or config.env file. Env vars win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config groups all application settings.
type Config struct {
	App         AppConfig
	DB          DBConfig
	HTTP        HTTPConfig
	JWT         JWTConfig
	Outbox      OutboxConfig
	Idempotency IdempotencyConfig
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	Storage  string // postgres or memory
}

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool { return c.Env == "development" }

// DBConfig holds PostgreSQL settings. DatabaseURL, when set, wins over the parts.
type DBConfig struct {
	DatabaseURL      string
	Host             string
	Port             int
	User             string
	Password         string
	DBName           string
	SSLMode          string
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration
}

// ConnectionString returns DatabaseURL or the DSN built from the parts.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a postgres URL, escaping credentials.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Secret string
	Issuer string
}

// OutboxConfig holds relay settings.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// IdempotencyConfig holds idempotency key settings.
type IdempotencyConfig struct {
	TTL time.Duration
}

// Load reads the configuration. Missing config files are not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := readOptional(v); err != nil {
		return nil, err
	}

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	if err := readOptional(v); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
			Storage:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		},
		DB: DBConfig{
			DatabaseURL:      v.GetString("DATABASE_URL"),
			Host:             v.GetString("DB_HOST"),
			Port:             v.GetInt("DB_PORT"),
			User:             v.GetString("DB_USER"),
			Password:         v.GetString("DB_PASSWORD"),
			DBName:           v.GetString("DB_NAME"),
			SSLMode:          v.GetString("DB_SSLMODE"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		},
		HTTP: HTTPConfig{
			Host:            v.GetString("HTTP_HOST"),
			Port:            v.GetInt("HTTP_PORT"),
			ReadTimeout:     v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("HTTP_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		Idempotency: IdempotencyConfig{
			TTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readOptional(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config file: %w", err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "mfgerp")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "mfgerp")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("JWT_ISSUER", "mfgerp")

	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)

	v.SetDefault("IDEMPOTENCY_TTL", "24h")
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.App.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.App.Storage)
	}
	if c.JWT.Secret == "" && !c.App.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.Outbox.BatchSize)
	}
	return nil
}
