package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	SLA      SLAConfig
	Metrics  MetricsConfig
	Cache    CacheConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN switches the
// service to the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig tunes the periodic deadline monitor.
type SLAConfig struct {
	CheckIntervalMinutes int
	WarningRatio         float64
	MaxOpenBacklog       int
	MaxHelperLoad        int
}

// MetricsConfig tunes the real-time snapshot job.
type MetricsConfig struct {
	SnapshotIntervalMinutes int
}

// CacheConfig tunes the ticket-type cache.
type CacheConfig struct {
	TicketTypeTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	warningRatio, err := strconv.ParseFloat(getEnv("SLA_WARNING_RATIO", "0.75"), 64)
	if err != nil || warningRatio <= 0 || warningRatio >= 1 {
		return nil, fmt.Errorf("invalid SLA_WARNING_RATIO: %q", getEnv("SLA_WARNING_RATIO", "0.75"))
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-core"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SLA: SLAConfig{
			CheckIntervalMinutes: getEnvAsInt("SLA_CHECK_INTERVAL_MINUTES", 5),
			WarningRatio:         warningRatio,
			MaxOpenBacklog:       getEnvAsInt("SLA_MAX_OPEN_BACKLOG", 20),
			MaxHelperLoad:        getEnvAsInt("SLA_MAX_HELPER_LOAD", 10),
		},
		Metrics: MetricsConfig{
			SnapshotIntervalMinutes: getEnvAsInt("METRICS_SNAPSHOT_INTERVAL_MINUTES", 1),
		},
		Cache: CacheConfig{
			TicketTypeTTLSeconds: getEnvAsInt("CACHE_TICKET_TYPE_TTL_SECONDS", 300),
		},
	}

	return cfg, nil
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

// CheckInterval returns the SLA scan period.
func (s SLAConfig) CheckInterval() time.Duration {
	if s.CheckIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.CheckIntervalMinutes) * time.Minute
}

// SnapshotInterval returns the metrics recomputation period.
func (m MetricsConfig) SnapshotInterval() time.Duration {
	if m.SnapshotIntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(m.SnapshotIntervalMinutes) * time.Minute
}

// TicketTypeTTL returns the cache entry lifetime.
func (c CacheConfig) TicketTypeTTL() time.Duration {
	if c.TicketTypeTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TicketTypeTTLSeconds) * time.Second
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
