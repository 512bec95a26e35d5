package main

import (
	"context"

	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/processor"
	"github.com/flashbots/lambda-storage-guard/secret"
	"github.com/urfave/cli/v2"
)

const (
	secretKeySlackToken = "SLACK_TOKEN"
)

type runner interface {
	Run(ctx context.Context) error
}

var newRunner = func(ctx context.Context, cfg *config.Config) (runner, error) {
	return processor.New(ctx, cfg)
}

func runnerFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Destination: &cfg.Runner.Region,
			EnvVars:     []string{"AWS_REGION"},
			Name:        "region",
			Usage:       "aws region to check the lambda storage usage in",
		},

		&cli.StringFlag{
			Destination: &cfg.Runner.TopicARN,
			EnvVars:     []string{"SNS_TOPIC_ARN"},
			Name:        "sns-topic-arn",
			Usage:       "the ARN of the SNS topic to send the alerts and reports to",
		},

		&cli.BoolFlag{
			Destination: &cfg.Runner.DryRun,
			EnvVars:     []string{"DRY_RUN"},
			Name:        "dry-run",
			Usage:       "alert regardless of the usage and run the non-destructive cleanup variant",
		},

		&cli.Float64Flag{
			Destination: &cfg.Runner.ThresholdPercent,
			EnvVars:     []string{"THRESHOLD_PERCENT"},
			Name:        "threshold",
			Usage:       "storage usage `percent` above which the cleanup is triggered",
			Value:       config.DefaultThresholdPercent,
		},

		&cli.StringFlag{
			Destination: &cfg.Runner.CleanupCommand,
			EnvVars:     []string{"CLEANUP_COMMAND"},
			Name:        "cleanup-command",
			Usage:       "command that frees up lambda storage",
			Value:       config.DefaultCleanupCommand,
		},

		&cli.StringFlag{
			Destination: &cfg.Runner.DryRunCommand,
			EnvVars:     []string{"DRY_RUN_COMMAND"},
			Name:        "dry-run-command",
			Usage:       "command that reports what the cleanup would free up",
			Value:       config.DefaultDryRunCommand,
		},

		&cli.StringFlag{
			Destination: &cfg.Runner.CleanupDir,
			EnvVars:     []string{"CLEANUP_DIR"},
			Name:        "cleanup-dir",
			Usage:       "working directory for the cleanup commands",
		},

		&cli.BoolFlag{
			Destination: &cfg.Runner.WaitForCleanup,
			EnvVars:     []string{"WAIT_FOR_CLEANUP"},
			Name:        "wait-for-cleanup",
			Usage:       "wait for the cleanup to finish and its report to be sent before exiting",
			Value:       true,
		},

		&cli.StringFlag{
			Destination: &cfg.Lock.DynamoDBName,
			EnvVars:     []string{"DYNAMODB_NAME"},
			Name:        "dynamo-db-name",
			Usage:       "the name of Dynamo DB to lock the cleanup in (optional)",
		},

		&cli.StringFlag{
			Destination: &cfg.Slack.ChannelName,
			EnvVars:     []string{"SLACK_CHANNEL_NAME"},
			Name:        "slack-channel-name",
			Usage:       "slack channel to mirror the notifications to (optional)",
		},

		&cli.StringFlag{
			Destination: &cfg.Slack.Token,
			EnvVars:     []string{"SLACK_TOKEN"},
			Name:        "slack-token",
			Usage:       "slack API token, or the ARN of the secret holding it",
		},
	}
}

func runnerBefore(cfg *config.Config) cli.BeforeFunc {
	return func(clictx *cli.Context) error {
		// validate inputs before anything touches aws
		if err := cfg.Runner.Validate(); err != nil {
			return err
		}

		// read secrets (if applicable)
		if secret.IsARN(cfg.Slack.Token) {
			slackToken, err := secret.Resolve(clictx.Context, cfg.Slack.Token, secretKeySlackToken)
			if err != nil {
				return err
			}
			cfg.Slack.Token = slackToken
		}

		return nil
	}
}

func CommandRun(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Check the lambda storage usage once (default)",

		Flags:  runnerFlags(cfg),
		Before: runnerBefore(cfg),

		Action: func(clictx *cli.Context) error {
			r, err := newRunner(clictx.Context, cfg)
			if err != nil {
				return err
			}
			return r.Run(clictx.Context)
		},
	}
}
