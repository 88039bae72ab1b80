// Package bootstrap wires process-level components (config, logger,
// optional Postgres trace sink, optional Redis transport client,
// telemetry) the way every service entrypoint in this module starts up.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/obs/telemetry"
	"github.com/flowrt/flowrt/internal/obsconfig"
)

// Components holds every initialized process dependency.
type Components struct {
	Config    *obsconfig.Config
	Logger    *logger.Logger
	Postgres  *pgxpool.Pool
	Redis     *goredis.Client
	Telemetry *telemetry.Telemetry

	cleanupFuncs []func() error
}

// Setup initializes config, logging, and the optional durable collaborators
// requested via options. This is the entry point every cmd/ binary in this
// module calls first.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{cleanupFuncs: make([]func() error, 0)}

	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = obsconfig.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(components.Config.Service.LogLevel, components.Config.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	if !options.skipPostgres && components.Config.Postgres.Enabled {
		components.Logger.Info("connecting to postgres trace sink")
		pool, err := connectPostgres(ctx, components.Config)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		components.Postgres = pool
		components.addCleanup(func() error {
			components.Logger.Info("closing postgres pool")
			pool.Close()
			return nil
		})
	}

	if !options.skipRedis && components.Config.Redis.Enabled {
		components.Logger.Info("connecting to redis transport")
		client := goredis.NewClient(&goredis.Options{
			Addr:     components.Config.Redis.Addr,
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		components.Redis = client
		components.addCleanup(func() error {
			components.Logger.Info("closing redis client")
			return client.Close()
		})
	}

	if !options.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Telemetry = telemetry.New(components.Config.Telemetry.PprofPort, components.Logger)
		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"postgres", components.Postgres != nil,
		"redis", components.Redis != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func connectPostgres(ctx context.Context, cfg *obsconfig.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Postgres.MaxConns)
	poolConfig.MinConns = int32(cfg.Postgres.MinConns)
	poolConfig.MaxConnLifetime = cfg.Postgres.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Postgres.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// MustSetup is like Setup but panics on error.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}

// Shutdown runs every registered cleanup function in LIFO order.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health reports whether every enabled durable collaborator is reachable.
func (c *Components) Health(ctx context.Context) error {
	if c.Postgres != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := c.Postgres.Ping(pingCtx); err != nil {
			return fmt.Errorf("postgres unhealthy: %w", err)
		}
	}
	if c.Redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
