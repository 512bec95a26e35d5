package config

import (
	"errors"
	"fmt"
)

const (
	DefaultThresholdPercent = 80.0
	DefaultCleanupCommand   = "bash lambda-cleanup.sh"
	DefaultDryRunCommand    = "bash lambda-cleanup-dryrun.sh --dry-run"
)

var (
	ErrRegionMissing    = errors.New("aws region must be configured (--region)")
	ErrTopicMissing     = errors.New("sns topic arn must be configured (--sns-topic-arn)")
	ErrThresholdInvalid = errors.New("usage threshold must be within (0, 100]")
	ErrCommandMissing   = errors.New("cleanup command must not be empty")
)

type Config struct {
	Log    Log
	Lock   Lock
	Runner Runner
	Slack  Slack
}

type Log struct {
	Level string
	Mode  string
}

type Lock struct {
	DynamoDBName string
}

type Runner struct {
	Region   string
	TopicARN string
	DryRun   bool

	ThresholdPercent float64

	CleanupCommand string
	DryRunCommand  string
	CleanupDir     string
	WaitForCleanup bool
}

type Slack struct {
	ChannelName string
	Token       string
}

// Validate checks the parts of the runner configuration that must be present
// before any AWS call is attempted.
func (r *Runner) Validate() error {
	if r.Region == "" {
		return ErrRegionMissing
	}
	if r.TopicARN == "" {
		return ErrTopicMissing
	}
	if r.ThresholdPercent <= 0 || r.ThresholdPercent > 100 {
		return fmt.Errorf("%w: %v",
			ErrThresholdInvalid, r.ThresholdPercent,
		)
	}
	// scheduled events may flip the dry-run mode, so both must be usable
	if r.CleanupCommand == "" {
		return fmt.Errorf("%w: %s",
			ErrCommandMissing, "cleanup",
		)
	}
	if r.DryRunCommand == "" {
		return fmt.Errorf("%w: %s",
			ErrCommandMissing, "dry-run",
		)
	}
	return nil
}

// CommandFor returns the cleanup command line matching the dry-run mode.
func (r *Runner) CommandFor(dryRun bool) string {
	if dryRun {
		return r.DryRunCommand
	}
	return r.CleanupCommand
}
