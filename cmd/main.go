package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	version = "development"
)

var (
	ErrFailedToSetupLogging = errors.New("failed to setup logging")
)

const (
	appName = "lambda-storage-guard"
)

func main() {
	app := newApp(&config.Config{})

	if err := app.Run(os.Args); err != nil {
		zap.L().Error("Failed with error", zap.Error(err))
		zap.L().Sync() //nolint:errcheck
		fmt.Fprintf(os.Stderr, "\n%s had failed with error:\n\n  %s\n\n", appName, err)
		os.Exit(1)
	}
	zap.L().Sync() //nolint:errcheck
}

func newApp(cfg *config.Config) *cli.App {
	flagLogLevel := &cli.StringFlag{
		Destination: &cfg.Log.Level,
		EnvVars:     []string{"LOG_LEVEL"},
		Name:        "log-level",
		Usage:       "logging level",
		Value:       "info",
	}

	flagLogMode := &cli.StringFlag{
		Destination: &cfg.Log.Mode,
		EnvVars:     []string{"LOG_MODE"},
		Name:        "log-mode",
		Usage:       "logging mode",
		Value:       "prod",
	}

	if version == "development" {
		flagLogLevel.Value = "debug"
		flagLogMode.Value = "dev"
	}

	return &cli.App{
		Name:    appName,
		Usage:   "Alert on high lambda code storage usage and trigger the cleanup",
		Version: version,

		Flags: []cli.Flag{
			flagLogLevel,
			flagLogMode,
		},

		Before: func(_ *cli.Context) error {
			l, err := logutils.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("%w: %w",
					ErrFailedToSetupLogging, err,
				)
			}
			zap.ReplaceGlobals(l)
			return nil
		},

		DefaultCommand: "run",

		Commands: []*cli.Command{
			CommandRun(cfg),
			CommandLambda(cfg),
			CommandUsage(cfg),
		},
	}
}
