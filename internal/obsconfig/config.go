// Package obsconfig loads process configuration from the environment: the
// ambient service knobs (log level/format, HTTP port, pprof) plus the
// domain knobs the engine needs (config directory, write-disable guard,
// default timeouts and budgets, optional durable trace sink, optional
// status/tag transport).
package obsconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all process configuration.
type Config struct {
	Service   ServiceConfig
	Engine    EngineConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// EngineConfig holds flow-runtime settings.
type EngineConfig struct {
	ConfigDirectory        string
	DisableWrites          bool
	DefaultTimeout         time.Duration
	DefaultMaxMessages     int
	ScriptTimeout          time.Duration
	HistorianDataDirectory string
}

// PostgresConfig holds settings for the optional durable trace/run-summary
// sink. The in-memory tracer remains authoritative; Postgres is additive.
type PostgresConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds settings for the optional egress status/tag publisher.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Root     string
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables, applying defaults
// suited to local development.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Engine: EngineConfig{
			ConfigDirectory:        getEnv("FLOWRT_CONFIG_DIR", "./flows"),
			DisableWrites:          getEnvBool("FLOWRT_DISABLE_WRITES", false),
			DefaultTimeout:         getEnvDuration("FLOWRT_DEFAULT_TIMEOUT", 30*time.Second),
			DefaultMaxMessages:     getEnvInt("FLOWRT_DEFAULT_MAX_MESSAGES", 10000),
			ScriptTimeout:          getEnvDuration("FLOWRT_SCRIPT_TIMEOUT", 5*time.Second),
			HistorianDataDirectory: getEnv("FLOWRT_HISTORIAN_DIR", "./data/historian"),
		},
		Postgres: PostgresConfig{
			Enabled:     getEnvBool("FLOWRT_POSTGRES_ENABLED", false),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "flowrt"),
			User:        getEnv("POSTGRES_USER", "flowrt"),
			Password:    getEnv("POSTGRES_PASSWORD", "flowrt"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("FLOWRT_REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Root:     getEnv("FLOWRT_TOPIC_ROOT", "flowrt"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Engine.DefaultMaxMessages <= 0 {
		return fmt.Errorf("default_max_messages must be positive")
	}
	if c.Postgres.Enabled && c.Postgres.MaxConns < c.Postgres.MinConns {
		return fmt.Errorf("postgres max_conns must be >= min_conns")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.User, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port, c.Postgres.Database,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
