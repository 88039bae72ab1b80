package bootstrap

import (
	"github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/obsconfig"
)

// Option configures the bootstrap process.
type Option func(*options)

type options struct {
	skipPostgres  bool
	skipRedis     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *obsconfig.Config
}

// WithoutPostgres skips the optional durable trace sink connection even if
// enabled in config.
func WithoutPostgres() Option {
	return func(o *options) { o.skipPostgres = true }
}

// WithoutRedis skips the optional status/tag transport connection even if
// enabled in config.
func WithoutRedis() Option {
	return func(o *options) { o.skipRedis = true }
}

// WithoutTelemetry skips telemetry initialization.
func WithoutTelemetry() Option {
	return func(o *options) { o.skipTelemetry = true }
}

// WithCustomLogger uses a pre-built logger instead of constructing one from
// config.
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) { o.customLogger = log }
}

// WithCustomConfig uses a pre-built config instead of loading from the
// environment.
func WithCustomConfig(cfg *obsconfig.Config) Option {
	return func(o *options) { o.customConfig = cfg }
}

func defaultOptions() *options {
	return &options{}
}
