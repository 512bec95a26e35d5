package logutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashbots/lambda-storage-guard/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrLoggerFailedToBuild = errors.New("failed to build the logger")
	ErrLoggerInvalidLevel  = errors.New("invalid log-level")
	ErrLoggerInvalidMode   = errors.New("invalid log-mode")
)

type contextKey string

const loggerContextKey contextKey = "logger"

func NewLogger(cfg *config.Log) (*zap.Logger, error) {
	var zcfg zap.Config
	switch cfg.Mode {
	case "prod":
		zcfg = zap.NewProductionConfig()
	case "dev":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: %s",
			ErrLoggerInvalidMode, cfg.Mode,
		)
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w",
			ErrLoggerInvalidLevel, cfg.Level, err,
		)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w",
			ErrLoggerFailedToBuild, err,
		)
	}
	return l, nil
}

func ContextWithLogger(parent context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(parent, loggerContextKey, logger)
}

// LoggerFromContext falls back to the global logger when the context has none.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if l, found := ctx.Value(loggerContextKey).(*zap.Logger); found {
		return l
	}
	return zap.L()
}
