package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

// CommandRunner runs a scheduler command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// SlurmOptions tunes the Slurm executor.
type SlurmOptions struct {
	PollInterval time.Duration
	SubmitRate   float64 // sbatch calls per second, <= 0 for unlimited
	Runner       CommandRunner
}

// Slurm submits each invocation as one sbatch job and polls sacct for its state.
type Slurm struct {
	stager  staging.Stager
	run     CommandRunner
	limiter *rate.Limiter
	poll    time.Duration
}

// NewSlurm creates a Slurm executor.
func NewSlurm(stager staging.Stager, opts SlurmOptions) *Slurm {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), 1)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Runner == nil {
		opts.Runner = runCommand
	}
	return &Slurm{
		stager:  stager,
		run:     opts.Runner,
		limiter: limiter,
		poll:    opts.PollInterval,
	}
}

// Name returns the executor kind.
func (s *Slurm) Name() string { return "slurm" }

// Submit stages inputs, writes the batch script and hands it to sbatch.
// Polling for completion runs in the background.
func (s *Slurm) Submit(ctx context.Context, inv model.Invocation) (Handle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	script, err := prepare(ctx, s.stager, inv, SlurmHeader(inv))
	if err != nil {
		// Staging failures belong to this invocation only; they surface on Wait.
		observability.CLILogger.Warn("Invocation not submitted",
			zap.String("invocation", inv.ID),
			zap.Error(err),
		)
		h := &handle{id: "unsubmitted-" + inv.ID, inv: inv, res: newResult()}
		h.res.set(failedOutcome(inv, time.Now().UTC(), err), err)
		return h, nil
	}

	out, err := s.run(ctx, "sbatch", "--parsable", script)
	if err != nil {
		return nil, fmt.Errorf("sbatch %s: %w", inv.ID, err)
	}
	jobID, err := ParseJobID(out)
	if err != nil {
		return nil, fmt.Errorf("sbatch %s: %w", inv.ID, err)
	}

	observability.CLILogger.Debug("Submitted batch job",
		zap.String("invocation", inv.ID),
		zap.String("job_id", jobID),
	)

	h := &handle{id: jobID, inv: inv, res: newResult()}
	go s.track(ctx, h, time.Now().UTC())
	return h, nil
}

func (s *Slurm) track(ctx context.Context, h *handle, submitted time.Time) {
	inv := h.inv
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		state, exitCode, reason, err := s.query(ctx, h.id)
		if err != nil {
			observability.CLILogger.Warn("sacct query failed",
				zap.String("job_id", h.id),
				zap.Error(err),
			)
		}
		if state.Terminal() {
			outcome := model.Outcome{
				InvocationID: inv.ID,
				Index:        inv.Index,
				State:        state,
				ExitCode:     exitCode,
				SchedulerID:  h.id,
				StartedAt:    submitted,
				EndedAt:      time.Now().UTC(),
			}
			if state == model.StateFailed {
				outcome.Error = reason
			}
			err := finish(ctx, s.stager, inv, &outcome)
			h.res.set(outcome, err)
			return
		}

		select {
		case <-ctx.Done():
			h.res.set(model.Outcome{
				InvocationID: inv.ID,
				Index:        inv.Index,
				State:        model.StateUnknown,
				SchedulerID:  h.id,
				Error:        ctx.Err().Error(),
				StartedAt:    submitted,
				EndedAt:      time.Now().UTC(),
			}, ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// query asks sacct for the job's allocation state.
func (s *Slurm) query(ctx context.Context, jobID string) (model.State, int, string, error) {
	out, err := s.run(ctx, "sacct", "-n", "-P", "-X", "-j", jobID, "--format=State,ExitCode")
	if err != nil {
		return model.StateUnknown, 0, "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		raw := strings.Fields(fields[0])
		if len(raw) == 0 {
			continue
		}
		exitCode := 0
		if len(fields) > 1 {
			exitCode = parseExitCode(fields[1])
		}
		return MapSlurmState(raw[0]), exitCode, strings.TrimSpace(fields[0]), nil
	}
	// Not yet visible to accounting.
	return model.StateQueued, 0, "", nil
}

// MapSlurmState maps a sacct state name to a lifecycle state.
func MapSlurmState(state string) model.State {
	switch strings.ToUpper(strings.TrimSuffix(state, "+")) {
	case "PENDING", "REQUEUED", "REQUEUE_HOLD", "REQUEUE_FED", "RESV_DEL_HOLD", "SUSPENDED":
		return model.StateQueued
	case "RUNNING", "CONFIGURING", "COMPLETING", "RESIZING", "SIGNALING", "STAGE_OUT":
		return model.StateRunning
	case "COMPLETED":
		return model.StateSuccess
	case "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED", "BOOT_FAIL", "DEADLINE", "REVOKED":
		return model.StateFailed
	default:
		return model.StateUnknown
	}
}

// SlurmHeader renders the #SBATCH directives for inv.
func SlurmHeader(inv model.Invocation) []string {
	r := inv.Resources
	cores := r.CoresPerNode
	if cores < 1 {
		cores = 1
	}
	lines := []string{
		"#SBATCH --job-name=" + inv.ID,
		"#SBATCH --nodes=1",
		"#SBATCH --ntasks=1",
		fmt.Sprintf("#SBATCH --cpus-per-task=%d", cores),
		fmt.Sprintf("#SBATCH --mem=%s", slurmMem(r.MemPerNodeGB)),
		"#SBATCH --output=" + inv.Stdout,
		"#SBATCH --error=" + inv.Stderr,
	}
	if r.Partition != "" && !strings.Contains(r.SchedulerOptions, "--partition") {
		lines = append(lines, "#SBATCH --partition="+r.Partition)
	}
	if r.GPUsPerNode > 0 {
		lines = append(lines, fmt.Sprintf("#SBATCH --gres=gpu:%d", r.GPUsPerNode))
	}
	for _, opt := range strings.Split(r.SchedulerOptions, "\n") {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "":
		case strings.HasPrefix(opt, "#SBATCH"):
			lines = append(lines, opt)
		default:
			lines = append(lines, "#SBATCH "+opt)
		}
	}
	return lines
}

// ParseJobID extracts the job ID from `sbatch --parsable` output: "<id>[;cluster]".
func ParseJobID(out []byte) (string, error) {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	id, _, _ := strings.Cut(line, ";")
	if _, err := strconv.Atoi(strings.Split(id, "_")[0]); err != nil || id == "" {
		return "", fmt.Errorf("unexpected sbatch output %q", line)
	}
	return id, nil
}

func slurmMem(gb int) string {
	if gb <= 0 {
		return "0"
	}
	return fmt.Sprintf("%dG", gb)
}

func parseExitCode(s string) int {
	code, _, _ := strings.Cut(strings.TrimSpace(s), ":")
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return n
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
