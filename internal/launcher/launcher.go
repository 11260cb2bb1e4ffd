// Package launcher submits a plan to an executor and drains the resulting
// handles. Submission never waits for execution: invocations with
// dependencies get deferred handles that submit once their upstream
// invocations succeed.
package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/parallelworks/gaussian-workflow-demo/internal/executor"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
	"github.com/parallelworks/gaussian-workflow-demo/internal/output"
)

// Policy decides how Wait reacts to a failed invocation.
type Policy string

const (
	// CollectAll waits for every handle and reports every failure.
	CollectAll Policy = "collect-all"
	// FailFast returns on the first failure in submission order.
	FailFast Policy = "fail-fast"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case CollectAll, FailFast:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unsupported wait policy %q", s)
	}
}

// UpstreamError marks an invocation that was never submitted because an
// invocation it depends on failed.
type UpstreamError struct {
	InvocationID string
	Upstream     string
	Err          error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("invocation %s skipped: upstream %s failed: %v", e.InvocationID, e.Upstream, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Summary is the barrier result of one run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Pending   int
	Outcomes  []model.Outcome
	Duration  time.Duration
}

// Launcher drives one executor.
type Launcher struct {
	exec executor.Executor
	out  output.Writer
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithOutput sends run events to w.
func WithOutput(w output.Writer) Option {
	return func(l *Launcher) {
		l.out = w
	}
}

// New creates a launcher around exec.
func New(exec executor.Executor, opts ...Option) *Launcher {
	l := &Launcher{exec: exec, out: output.NopWriter{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch submits every invocation in plan order and returns one handle per
// invocation, in the same order. On a submission error the handles accepted
// so far are returned with the error.
func (l *Launcher) Launch(ctx context.Context, plan *model.Plan) ([]executor.Handle, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}

	handles := make([]executor.Handle, 0, len(plan.Invocations))
	byID := make(map[string]executor.Handle, len(plan.Invocations))

	for _, inv := range plan.Invocations {
		if len(inv.DependsOn) == 0 {
			h, err := l.exec.Submit(ctx, inv)
			if err != nil {
				observability.CLILogger.Error("Submission failed",
					zap.String("invocation", inv.ID),
					zap.Error(err),
				)
				return handles, fmt.Errorf("submit %s: %w", inv.ID, err)
			}
			l.submitted(ctx, inv, h.ID())
			handles = append(handles, h)
			byID[inv.ID] = h
			continue
		}

		upstream := make([]executor.Handle, 0, len(inv.DependsOn))
		for _, dep := range inv.DependsOn {
			up, ok := byID[dep]
			if !ok {
				return handles, fmt.Errorf("invocation %s depends on %s, which is not submitted before it", inv.ID, dep)
			}
			upstream = append(upstream, up)
		}
		d := newDeferred(inv, upstream)
		go d.run(ctx, l)
		handles = append(handles, d)
		byID[inv.ID] = d
	}

	return handles, nil
}

func (l *Launcher) submitted(ctx context.Context, inv model.Invocation, schedulerID string) {
	observability.CLILogger.Info("Submitted",
		zap.String("invocation", inv.ID),
		zap.String("stage", inv.Stage),
		zap.String("scheduler_id", schedulerID),
	)
	if err := l.out.WriteSubmit(ctx, &output.SubmitRecord{
		InvocationID: inv.ID,
		Index:        inv.Index,
		Stage:        inv.Stage,
		SchedulerID:  schedulerID,
		DependsOn:    inv.DependsOn,
	}); err != nil {
		observability.CLILogger.Warn("Failed to write submit record", zap.Error(err))
	}
}

// Wait drains handles in submission order under policy.
func (l *Launcher) Wait(ctx context.Context, handles []executor.Handle, policy Policy) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(handles)}
	var errs error

	for i, h := range handles {
		outcome, err := h.Wait(ctx)
		summary.Outcomes = append(summary.Outcomes, outcome)
		l.record(ctx, h, outcome, err)

		switch {
		case err == nil && outcome.State == model.StateSuccess:
			summary.Succeeded++
			continue
		case ctx.Err() != nil:
			summary.Pending += len(handles) - i
			errs = multierr.Append(errs, ctx.Err())
		default:
			summary.Failed++
			if err == nil {
				err = fmt.Errorf("invocation %s ended in state %s", h.Invocation().ID, outcome.State)
			}
			errs = multierr.Append(errs, err)
			if policy != FailFast {
				continue
			}
			summary.Pending += len(handles) - i - 1
		}
		break
	}

	summary.Duration = time.Since(start)
	if err := l.out.WriteSummary(context.WithoutCancel(ctx), &output.SummaryRecord{
		Total:      summary.Total,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Pending:    summary.Pending,
		WaitPolicy: string(policy),
		DurationMs: summary.Duration.Milliseconds(),
	}); err != nil {
		observability.CLILogger.Warn("Failed to write summary record", zap.Error(err))
	}

	return summary, errs
}

func (l *Launcher) record(ctx context.Context, h executor.Handle, outcome model.Outcome, err error) {
	fields := []zap.Field{
		zap.String("invocation", h.Invocation().ID),
		zap.String("state", string(outcome.State)),
		zap.Int("exit_code", outcome.ExitCode),
	}
	if err != nil {
		observability.CLILogger.Warn("Invocation did not succeed", append(fields, zap.Error(err))...)
	} else {
		observability.CLILogger.Info("Invocation finished", fields...)
	}

	var duration int64
	if !outcome.StartedAt.IsZero() && !outcome.EndedAt.IsZero() {
		duration = outcome.EndedAt.Sub(outcome.StartedAt).Milliseconds()
	}
	if werr := l.out.WriteOutcome(context.WithoutCancel(ctx), &output.OutcomeRecord{Outcome: outcome, DurationMs: duration}); werr != nil {
		observability.CLILogger.Warn("Failed to write outcome record", zap.Error(werr))
	}
}

// deferred is the handle of an invocation waiting on upstream invocations.
type deferred struct {
	inv      model.Invocation
	upstream []executor.Handle

	mu    sync.Mutex
	inner executor.Handle

	done    chan struct{}
	outcome model.Outcome
	err     error
}

func newDeferred(inv model.Invocation, upstream []executor.Handle) *deferred {
	return &deferred{inv: inv, upstream: upstream, done: make(chan struct{})}
}

func (d *deferred) run(ctx context.Context, l *Launcher) {
	defer close(d.done)

	for _, up := range d.upstream {
		if _, err := up.Wait(ctx); err != nil {
			d.fail(&UpstreamError{InvocationID: d.inv.ID, Upstream: up.Invocation().ID, Err: err})
			return
		}
	}

	h, err := l.exec.Submit(ctx, d.inv)
	if err != nil {
		d.fail(fmt.Errorf("submit %s: %w", d.inv.ID, err))
		return
	}
	d.mu.Lock()
	d.inner = h
	d.mu.Unlock()
	l.submitted(ctx, d.inv, h.ID())

	d.outcome, d.err = h.Wait(ctx)
}

func (d *deferred) fail(err error) {
	now := time.Now().UTC()
	d.outcome = model.Outcome{
		InvocationID: d.inv.ID,
		Index:        d.inv.Index,
		State:        model.StateFailed,
		ExitCode:     -1,
		Error:        err.Error(),
		StartedAt:    now,
		EndedAt:      now,
	}
	d.err = err
}

// ID returns the executor handle ID once submitted.
func (d *deferred) ID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inner != nil {
		return d.inner.ID()
	}
	return "deferred-" + d.inv.ID
}

func (d *deferred) Invocation() model.Invocation { return d.inv }

func (d *deferred) Wait(ctx context.Context) (model.Outcome, error) {
	select {
	case <-d.done:
		return d.outcome, d.err
	case <-ctx.Done():
		return model.Outcome{
			InvocationID: d.inv.ID,
			Index:        d.inv.Index,
			State:        model.StateUnknown,
			Error:        ctx.Err().Error(),
		}, ctx.Err()
	}
}
