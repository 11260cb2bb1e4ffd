// Package executor runs invocations on a compute backend: a local bash
// pool, a Slurm cluster, or a dry run that only prints scripts.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

// Executor accepts invocations. Submit returns once the invocation is
// accepted and never waits for it to run.
type Executor interface {
	Name() string
	Submit(ctx context.Context, inv model.Invocation) (Handle, error)
}

// Handle is the future for one submitted invocation. Wait may be called
// any number of times from any goroutine.
type Handle interface {
	ID() string
	Invocation() model.Invocation
	Wait(ctx context.Context) (model.Outcome, error)
}

// InvocationError reports an invocation that did not complete successfully
type InvocationError struct {
	InvocationID string
	State        model.State
	ExitCode     int
	Reason       string
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation %s %s (exit %d): %s", e.InvocationID, e.State, e.ExitCode, e.Reason)
}

// New builds the executor named by cfg.Kind.
func New(cfg config.ExecutorConfig, stager staging.Stager, out io.Writer) (Executor, error) {
	switch cfg.Kind {
	case config.KindLocal:
		return NewLocal(stager, cfg.MaxParallel), nil
	case config.KindSlurm:
		return NewSlurm(stager, SlurmOptions{
			PollInterval: cfg.PollInterval,
			SubmitRate:   cfg.SubmitRate,
		}), nil
	case config.KindDryRun:
		return NewDryRun(out), nil
	default:
		return nil, fmt.Errorf("unsupported executor %q", cfg.Kind)
	}
}

// ScriptPath is where the rendered script for inv is written.
func ScriptPath(inv model.Invocation) string {
	return filepath.Join(inv.OutputDir, inv.ID+".sh")
}

// prepare creates the output directory, stages inputs and writes the script.
func prepare(ctx context.Context, stager staging.Stager, inv model.Invocation, header []string) (string, error) {
	if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	for _, f := range inv.Inputs {
		if err := stager.StageIn(ctx, f); err != nil {
			return "", err
		}
	}

	script, err := RenderScript(inv, header...)
	if err != nil {
		return "", err
	}
	path := ScriptPath(inv)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return path, nil
}

// finish stages outputs of a successful invocation and returns its error, if any.
func finish(ctx context.Context, stager staging.Stager, inv model.Invocation, outcome *model.Outcome) error {
	if outcome.State == model.StateSuccess {
		for _, f := range inv.Outputs {
			if err := stager.StageOut(ctx, f); err != nil {
				outcome.State = model.StateFailed
				outcome.Error = err.Error()
				return err
			}
		}
		return nil
	}
	return &InvocationError{
		InvocationID: inv.ID,
		State:        outcome.State,
		ExitCode:     outcome.ExitCode,
		Reason:       outcome.Error,
	}
}

// result is a write-once outcome shared by every waiter of a handle.
type result struct {
	once    sync.Once
	done    chan struct{}
	outcome model.Outcome
	err     error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

func (r *result) set(outcome model.Outcome, err error) {
	r.once.Do(func() {
		r.outcome = outcome
		r.err = err
		close(r.done)
	})
}

func (r *result) wait(ctx context.Context, inv model.Invocation) (model.Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, r.err
	case <-ctx.Done():
		return model.Outcome{
			InvocationID: inv.ID,
			Index:        inv.Index,
			State:        model.StateUnknown,
			Error:        ctx.Err().Error(),
		}, ctx.Err()
	}
}

type handle struct {
	id  string
	inv model.Invocation
	res *result
}

func (h *handle) ID() string                   { return h.id }
func (h *handle) Invocation() model.Invocation { return h.inv }

func (h *handle) Wait(ctx context.Context) (model.Outcome, error) {
	return h.res.wait(ctx, h.inv)
}

func failedOutcome(inv model.Invocation, started time.Time, err error) model.Outcome {
	return model.Outcome{
		InvocationID: inv.ID,
		Index:        inv.Index,
		State:        model.StateFailed,
		ExitCode:     -1,
		Error:        err.Error(),
		StartedAt:    started,
		EndedAt:      time.Now().UTC(),
	}
}
