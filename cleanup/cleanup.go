package cleanup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/flashbots/lambda-storage-guard/logutils"
	"github.com/flashbots/lambda-storage-guard/types"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

var (
	ErrCommandEmpty   = errors.New("cleanup command is empty")
	ErrCommandInvalid = errors.New("failed to parse cleanup command")
)

// Executor runs the external cleanup scripts.
type Executor struct {
	dir string
}

func NewExecutor(dir string) *Executor {
	return &Executor{dir: dir}
}

// Start spawns the command and returns once the child process exists.  The
// completion callback is invoked from another goroutine with the captured
// output.  A returned error means the command was never started and the
// callback will not be called.
func (e *Executor) Start(
	ctx context.Context,
	command string,
	onDone func(*types.CleanupResult),
) error {
	l := logutils.LoggerFromContext(ctx)

	argv, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommandInvalid, err)
	}
	if len(argv) == 0 {
		return ErrCommandEmpty
	}

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return err
	}
	l.Info("Started cleanup command",
		zap.Strings("argv", argv),
		zap.String("dir", e.dir),
		zap.Int("pid", cmd.Process.Pid),
	)

	go func() {
		err := cmd.Wait()
		res := &types.CleanupResult{
			Command:  command,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			res.ExitCode = 0
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			res.Err = err
		default:
			res.ExitCode = -1
			res.Err = err
		}

		onDone(res)
	}()

	return nil
}
