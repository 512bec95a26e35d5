package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/flashbots/lambda-storage-guard/cleanup"
	"github.com/flashbots/lambda-storage-guard/config"
	"github.com/flashbots/lambda-storage-guard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

type fakeUsage struct {
	limit, used int64
	err         error
}

func (f *fakeUsage) Snapshot(context.Context) (*types.UsageSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return types.NewUsageSnapshot(f.limit, f.used)
}

type fakePublisher struct {
	mx   sync.Mutex
	sent []*types.Notification
	err  map[types.Kind]error
}

func (f *fakePublisher) Publish(_ context.Context, n *types.Notification) (string, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if err := f.err[n.Kind]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, n)
	return "msg-" + string(n.Kind), nil
}

func (f *fakePublisher) notifications() []*types.Notification {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]*types.Notification(nil), f.sent...)
}

type fakeExecutor struct {
	mx       sync.Mutex
	commands []string
	result   types.CleanupResult
	startErr error
	release  chan struct{}
}

// Start records the command synchronously, the way a spawned child exists by
// the time the real executor returns.
func (f *fakeExecutor) Start(
	_ context.Context,
	command string,
	onDone func(*types.CleanupResult),
) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mx.Lock()
	f.commands = append(f.commands, command)
	res := f.result
	f.mx.Unlock()

	res.Command = command
	go func() {
		if f.release != nil {
			<-f.release
		}
		onDone(&res)
	}()
	return nil
}

func (f *fakeExecutor) executed() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeLocker struct {
	locked   bool
	err      error
	released int
}

func (f *fakeLocker) LockCleanup(context.Context, string, string, string) (bool, error) {
	return f.locked, f.err
}

func (f *fakeLocker) ReleaseCleanup(context.Context, string, string, string) error {
	f.released++
	return nil
}

func newTestProcessor(limit, used int64, dryRun bool) (*Processor, *fakePublisher, *fakeExecutor) {
	pub := &fakePublisher{err: map[types.Kind]error{}}
	exe := &fakeExecutor{result: types.CleanupResult{Stdout: "cleaned\n"}}
	return &Processor{
		cfg: config.Runner{
			Region:           "us-east-1",
			TopicARN:         "arn:aws:sns:us-east-1:123456789012:alerts",
			DryRun:           dryRun,
			ThresholdPercent: config.DefaultThresholdPercent,
			CleanupCommand:   config.DefaultCleanupCommand,
			DryRunCommand:    config.DefaultDryRunCommand,
			WaitForCleanup:   true,
		},
		usage:     &fakeUsage{limit: limit, used: used},
		publisher: pub,
		executor:  exe,
	}, pub, exe
}

func TestRunAboveThreshold(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 900*mb, false)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{config.DefaultCleanupCommand}, exe.executed())
	sent := pub.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, types.SubjectAlert, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Usage: 90.00%")
	assert.Equal(t, types.SubjectReport, sent[1].Subject)
	assert.Contains(t, sent[1].Body, "cleaned")
}

func TestRunWithinLimits(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 500*mb, false)

	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, pub.notifications())
	assert.Empty(t, exe.executed())
}

func TestRunDryRunAtZeroUsage(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 0, true)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{config.DefaultDryRunCommand}, exe.executed())
	sent := pub.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, types.SubjectAlertDryRun, sent[0].Subject)
	assert.Equal(t, types.SubjectReportDryRun, sent[1].Subject)
}

func TestRunCleanupFailureSendsNoReport(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 950*mb, false)
	exe.result = types.CleanupResult{Stdout: "partial", ExitCode: 1, Err: errors.New("exit status 1")}

	require.NoError(t, p.Run(context.Background()))

	sent := pub.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, types.KindAlert, sent[0].Kind)
}

func TestRunReportFallsBackToStderr(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 950*mb, false)
	exe.result = types.CleanupResult{Stderr: "deleted 4 versions"}

	require.NoError(t, p.Run(context.Background()))

	sent := pub.notifications()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Body, "Output:\ndeleted 4 versions")
}

func TestRunUsageQueryFailure(t *testing.T) {
	p, pub, exe := newTestProcessor(0, 0, true)
	boom := errors.New("access denied")
	p.usage = &fakeUsage{err: boom}

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrUsageQueryFailed)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, pub.notifications())
	assert.Empty(t, exe.executed())
}

func TestRunAlertFailureSkipsCleanup(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 900*mb, false)
	pub.err[types.KindAlert] = errors.New("topic not found")

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlertFailed)
	assert.Empty(t, exe.executed())
}

func TestRunReportFailureIsReturnedWhenWaiting(t *testing.T) {
	p, pub, _ := newTestProcessor(1000*mb, 900*mb, false)
	pub.err[types.KindReport] = errors.New("throttled")

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrReportFailed)
}

func TestRunWithoutWaitingStartsCleanupBeforeReturning(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 900*mb, false)
	p.cfg.WaitForCleanup = false
	exe.release = make(chan struct{})

	require.NoError(t, p.Run(context.Background()))

	// no grace period: the cleanup must already be spawned when Run returns
	assert.Equal(t, []string{config.DefaultCleanupCommand}, exe.executed())
	require.Len(t, pub.notifications(), 1)

	close(exe.release)
	assert.Eventually(t, func() bool {
		return len(pub.notifications()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRunWithoutWaitingRealCommand(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "cleanup-ran")
	p, _, _ := newTestProcessor(1000*mb, 900*mb, false)
	p.cfg.WaitForCleanup = false
	p.cfg.CleanupCommand = "touch " + marker
	p.executor = cleanup.NewExecutor("")

	require.NoError(t, p.Run(context.Background()))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunCleanupLaunchFailure(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 900*mb, false)
	lock := &fakeLocker{locked: true}
	p.locker = lock
	exe.startErr = errors.New("exec: \"bash\": executable file not found in $PATH")

	require.NoError(t, p.Run(context.Background()))

	sent := pub.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, types.KindAlert, sent[0].Kind)
	assert.Equal(t, 1, lock.released)
}

func TestRunLocking(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 900*mb, false)
	lock := &fakeLocker{locked: false}
	p.locker = lock

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, pub.notifications())
	assert.Empty(t, exe.executed())

	lock.locked = true
	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, pub.notifications(), 2)
	assert.Equal(t, 1, lock.released)

	lock.err = errors.New("table missing")
	assert.Error(t, p.Run(context.Background()))
}

func TestLambdaHandler(t *testing.T) {
	p, pub, exe := newTestProcessor(1000*mb, 100*mb, false)
	p.cfg.WaitForCleanup = false

	require.NoError(t, p.Lambda(context.Background(), events.CloudWatchEvent{ID: "evt-1"}))
	assert.Empty(t, pub.notifications())

	detail, err := json.Marshal(map[string]bool{"dry_run": true})
	require.NoError(t, err)
	require.NoError(t, p.Lambda(context.Background(), events.CloudWatchEvent{ID: "evt-2", Detail: detail}))

	// the handler waits for the report even when the cli flag says otherwise
	sent := pub.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, types.SubjectReportDryRun, sent[1].Subject)
	assert.Equal(t, []string{config.DefaultDryRunCommand}, exe.executed())

	require.NoError(t, p.Lambda(context.Background(), events.CloudWatchEvent{ID: "evt-3", Detail: []byte("{")}))
	assert.Len(t, pub.notifications(), 2)
}
