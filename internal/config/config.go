package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage drivers for the browser-scoped session lifetime.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config aggregates runtime configuration for the storefront session client.
type Config struct {
	App      AppConfig
	Remote   RemoteConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Logger   LoggerConfig
	Session  SessionConfig
	DevAPI   DevAPIConfig
}

// AppConfig controls the local gateway.
type AppConfig struct {
	Name                  string `validate:"required"`
	Env                   string
	Host                  string
	Port                  string `validate:"required"`
	Version               string
	RequestTimeoutSeconds int `validate:"gte=0"`
}

// RemoteConfig points at the storefront API.
type RemoteConfig struct {
	BaseURL string `validate:"required,url"`
	// TimeoutSeconds of 0 leaves the transport default in place.
	TimeoutSeconds int `validate:"gte=0"`
}

// StorageConfig selects where the browser-scoped lifetime lives.
type StorageConfig struct {
	Driver    string `validate:"oneof=memory redis postgres"`
	Namespace string `validate:"required"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SessionConfig tunes derived session facts.
type SessionConfig struct {
	ExpiryWarningSeconds int `validate:"gt=0"`
}

// DevAPIConfig configures the in-memory development API.
type DevAPIConfig struct {
	Host            string
	Port            string
	JWTSecret       string
	TokenTTLMinutes int
	BcryptCost      int
	// RequireVerifiedEmail makes login answer 403 EMAIL_NOT_VERIFIED for unconfirmed accounts.
	RequireVerifiedEmail bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "storefront-session"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Remote: RemoteConfig{
			BaseURL:        getEnv("STOREFRONT_API_URL", "http://localhost:8100/api"),
			TimeoutSeconds: getEnvAsInt("STOREFRONT_API_TIMEOUT_SECONDS", 0),
		},
		Storage: StorageConfig{
			Driver:    getEnv("SESSION_STORAGE_DRIVER", StorageMemory),
			Namespace: getEnv("SESSION_STORAGE_NAMESPACE", "storefront"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			ExpiryWarningSeconds: getEnvAsInt("SESSION_EXPIRY_WARNING_SECONDS", 300),
		},
		DevAPI: DevAPIConfig{
			Host:            getEnv("DEVAPI_HOST", "127.0.0.1"),
			Port:            getEnv("DEVAPI_PORT", "8100"),
			JWTSecret:       getEnv("DEVAPI_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("DEVAPI_TOKEN_TTL_MINUTES", 60),
			BcryptCost:      getEnvAsInt("DEVAPI_BCRYPT_COST", 10),

			RequireVerifiedEmail: getEnvAsBool("DEVAPI_REQUIRE_VERIFIED_EMAIL", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct-level constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Storage.Driver == StoragePostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("config validation failed: POSTGRES_DSN required for postgres storage")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the remote call timeout, zero meaning none.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ExpiryWarning returns the window in which a session counts as expiring soon.
func (s SessionConfig) ExpiryWarning() time.Duration {
	return time.Duration(s.ExpiryWarningSeconds) * time.Second
}

// Addr returns the development API bind address.
func (d DevAPIConfig) Addr() string {
	return fmt.Sprintf("%s:%s", d.Host, d.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
