// Package logger builds the zap logger of the command line front-end.
//
// Library packages accept a *zap.Logger and default to a no-op logger; only
// the front-end configures the global logger kept here.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

var (
	global *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	// JobKey carries the job file a run was started from
	JobKey contextKey = "job"
	// PipelineKey carries the pipeline name of the job
	PipelineKey contextKey = "pipeline"
)

// fieldKeys are copied from a context into log fields, in this order
var fieldKeys = []contextKey{JobKey, PipelineKey}

// Config selects level, encoding and outputs
type Config struct {
	// Level is debug, info, warn or error; info when empty
	Level       string
	Development bool
	// Encoding is console or json; console when empty
	Encoding string
	// OutputPaths default to stderr, stdout may carry records
	OutputPaths []string
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "console"
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stderr"}
	}
	return c
}

// New builds a standalone logger from cfg
func New(cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid log level")
	}

	encoding := zap.NewProductionEncoderConfig()
	encoding.TimeKey = "timestamp"
	encoding.MessageKey = "message"
	encoding.EncodeTime = zapcore.ISO8601TimeEncoder
	encoding.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.Development {
		encoding.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoding,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot build logger")
	}
	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return logger, nil
}

// Init configures the global logger. Only the first call has an effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		global, err = New(cfg)
	})
	return err
}

// Get returns the global logger, a default console logger when Init was
// not called or failed.
func Get() *zap.Logger {
	if global == nil {
		if err := Init(Config{}); err != nil || global == nil {
			global = zap.NewNop()
		}
	}
	return global
}

// ContextWith returns a copy of ctx carrying value under key
func ContextWith(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithContext returns the global logger with the job and pipeline fields
// found in ctx.
func WithContext(ctx context.Context) *zap.Logger {
	logger := Get()
	for _, key := range fieldKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(zap.String(string(key), v))
		}
	}
	return logger
}

// Sync flushes the global logger
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
