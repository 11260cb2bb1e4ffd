package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

// Local runs invocations as bash child processes on this host, at most
// maxParallel at a time.
type Local struct {
	stager staging.Stager
	sem    *semaphore.Weighted
	shell  string
	seq    atomic.Int64
}

// NewLocal creates a local executor. maxParallel <= 0 means one slot.
func NewLocal(stager staging.Stager, maxParallel int) *Local {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Local{
		stager: stager,
		sem:    semaphore.NewWeighted(int64(maxParallel)),
		shell:  "bash",
	}
}

// Name returns the executor kind.
func (l *Local) Name() string { return "local" }

// Submit queues inv and returns immediately.
func (l *Local) Submit(ctx context.Context, inv model.Invocation) (Handle, error) {
	h := &handle{
		id:  fmt.Sprintf("local-%d", l.seq.Add(1)),
		inv: inv,
		res: newResult(),
	}
	go l.run(ctx, h)
	return h, nil
}

func (l *Local) run(ctx context.Context, h *handle) {
	inv := h.inv
	if err := l.sem.Acquire(ctx, 1); err != nil {
		h.res.set(failedOutcome(inv, time.Now().UTC(), err), err)
		return
	}
	defer l.sem.Release(1)

	started := time.Now().UTC()
	observability.CLILogger.Debug("Starting invocation",
		zap.String("invocation", inv.ID),
		zap.String("handle", h.id),
	)

	script, err := prepare(ctx, l.stager, inv, nil)
	if err != nil {
		h.res.set(failedOutcome(inv, started, err), err)
		return
	}

	outcome := model.Outcome{
		InvocationID: inv.ID,
		Index:        inv.Index,
		SchedulerID:  h.id,
		StartedAt:    started,
	}
	exitCode, err := l.exec(ctx, inv, script)
	outcome.EndedAt = time.Now().UTC()
	outcome.ExitCode = exitCode
	switch {
	case err != nil:
		outcome.State = model.StateFailed
		outcome.Error = err.Error()
	case exitCode != 0:
		outcome.State = model.StateFailed
		outcome.Error = fmt.Sprintf("exit status %d", exitCode)
	default:
		outcome.State = model.StateSuccess
	}

	err = finish(ctx, l.stager, inv, &outcome)
	h.res.set(outcome, err)
}

func (l *Local) exec(ctx context.Context, inv model.Invocation, script string) (int, error) {
	stdout, err := os.Create(inv.Stdout)
	if err != nil {
		return -1, fmt.Errorf("create stdout capture: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(inv.Stderr)
	if err != nil {
		return -1, fmt.Errorf("create stderr capture: %w", err)
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, l.shell, script)
	cmd.Dir = inv.OutputDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()

	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
