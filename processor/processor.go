package processor

import (
	"context"
	"errors"
	"fmt"
	"math"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/flashbots/lambda-storage-guard/cleanup"
	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/db"
	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/publisher"
	"github.com/flashbots/lambda-storage-guard/types"
	"github.com/flashbots/lambda-storage-guard/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAlertFailed      = errors.New("failed to publish the usage alert")
	ErrCleanupLocked    = errors.New("cleanup is already running for this region")
	ErrReportFailed     = errors.New("failed to publish the cleanup report")
	ErrUsageQueryFailed = errors.New("failed to query lambda storage usage")
)

type UsageProvider interface {
	Snapshot(ctx context.Context) (*types.UsageSnapshot, error)
}

type Publisher interface {
	Publish(ctx context.Context, n *types.Notification) (string, error)
}

// Executor spawns the cleanup before Start returns and reports its outcome
// through onDone.
type Executor interface {
	Start(ctx context.Context, command string, onDone func(*types.CleanupResult)) error
}

type Locker interface {
	LockCleanup(ctx context.Context, topic, region, runID string) (bool, error)
	ReleaseCleanup(ctx context.Context, topic, region, runID string) error
}

type Processor struct {
	cfg config.Runner

	usage     UsageProvider
	publisher Publisher
	executor  Executor
	locker    Locker
}

func New(ctx context.Context, cfg *config.Config) (*Processor, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Runner.Region),
	)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg: cfg.Runner,

		usage:     usage.NewLambda(awsCfg),
		publisher: publisher.New(awsCfg, cfg),
		executor:  cleanup.NewExecutor(cfg.Runner.CleanupDir),
	}

	if cfg.Lock.DynamoDBName != "" {
		d, err := db.New(cfg.Lock.DynamoDBName, cfg.Runner.Region)
		if err != nil {
			return nil, err
		}
		p.locker = d
	}

	return p, nil
}

// Run checks the usage once and, if needed, alerts and triggers the cleanup.
func (p *Processor) Run(ctx context.Context) error {
	return p.run(ctx, p.cfg.DryRun, p.cfg.WaitForCleanup)
}

func (p *Processor) run(ctx context.Context, dryRun, wait bool) error {
	runID := uuid.New().String()
	l := logutils.LoggerFromContext(ctx).With(
		zap.String("run_id", runID),
		zap.String("region", p.cfg.Region),
		zap.Bool("dry_run", dryRun),
	)
	ctx = logutils.ContextWithLogger(ctx, l)

	snapshot, err := p.usage.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w",
			ErrUsageQueryFailed, err,
		)
	}

	l.Info("Lambda storage usage",
		zap.Int64("used_mb", int64(math.Round(snapshot.UsedMB()))),
		zap.Int64("limit_mb", int64(math.Round(snapshot.LimitMB()))),
		zap.String("percent_used", fmt.Sprintf("%.2f", snapshot.PercentUsed)),
	)

	if !snapshot.Exceeds(p.cfg.ThresholdPercent) && !dryRun {
		l.Info("Lambda storage usage is within acceptable limits. No action needed.",
			zap.Float64("threshold_percent", p.cfg.ThresholdPercent),
		)
		return nil
	}

	if p.locker != nil {
		locked, err := p.locker.LockCleanup(ctx, p.cfg.TopicARN, p.cfg.Region, runID)
		if err != nil {
			return err
		}
		if !locked {
			l.Warn("Skipped the alert and cleanup",
				zap.Error(ErrCleanupLocked),
			)
			return nil
		}
	}

	if dryRun {
		l.Info("Storage usage dry run requested. Triggering dry run...")
	} else {
		l.Warn("Storage usage critical. Triggering cleanup...")
	}

	alertID, err := p.publisher.Publish(ctx, types.NewAlert(snapshot, dryRun))
	if err != nil {
		p.releaseLock(ctx, runID)
		return fmt.Errorf("%w: %w",
			ErrAlertFailed, err,
		)
	}
	l.Info("Published alert",
		zap.String("sns_message_id", alertID),
	)

	command := p.cfg.CommandFor(dryRun)

	done := make(chan error, 1)
	err = p.executor.Start(ctx, command, func(res *types.CleanupResult) {
		err := p.cleanupCompleted(ctx, res, dryRun)
		p.releaseLock(ctx, runID)
		done <- err
	})
	if err != nil {
		p.releaseLock(ctx, runID)
		return p.cleanupCompleted(ctx, &types.CleanupResult{
			Command:  command,
			ExitCode: -1,
			Err:      err,
		}, dryRun)
	}

	if !wait {
		// the process may exit before the cleanup finishes and reports back
		l.Info("Cleanup launched, not waiting for it to complete",
			zap.String("command", command),
		)
		return nil
	}
	return <-done
}

func (p *Processor) cleanupCompleted(
	ctx context.Context,
	res *types.CleanupResult,
	dryRun bool,
) error {
	l := logutils.LoggerFromContext(ctx).With(
		zap.String("command", res.Command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	)

	if res.Failed() {
		l.Error("Cleanup script error",
			zap.Error(res.Err),
			zap.String("stderr", res.Stderr),
		)
		return nil
	}

	reportID, err := p.publisher.Publish(ctx, types.NewReport(res, dryRun))
	if err != nil {
		l.Error("Failed to send the cleanup report",
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w",
			ErrReportFailed, err,
		)
	}
	l.Info("Report sent",
		zap.String("sns_message_id", reportID),
	)
	return nil
}

func (p *Processor) releaseLock(ctx context.Context, runID string) {
	if p.locker == nil {
		return
	}
	// release is best-effort, the lock expires on its own
	_ = p.locker.ReleaseCleanup(context.WithoutCancel(ctx), p.cfg.TopicARN, p.cfg.Region, runID)
}
