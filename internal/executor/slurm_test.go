package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

type fakeScheduler struct {
	mu      sync.Mutex
	calls   [][]string
	sbatch  string
	states  []string // successive sacct answers; the last one repeats
	queries int
}

func (f *fakeScheduler) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	switch name {
	case "sbatch":
		return []byte(f.sbatch), nil
	case "sacct":
		i := f.queries
		if i >= len(f.states) {
			i = len(f.states) - 1
		}
		f.queries++
		return []byte(f.states[i]), nil
	}
	return nil, errors.New("unexpected command " + name)
}

func slurmInvocation(t *testing.T) model.Invocation {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "case_0", "g16")
	return model.Invocation{
		ID:        "g16-0",
		OutputDir: out,
		Program:   model.Command{Args: []string{"g16", "-c=0-2"}, Dir: out},
		Outputs:   []model.StagedFile{{URL: "file://" + filepath.ToSlash(filepath.Join(dir, "results", "case_0")), LocalPath: out}},
		Stdout:    filepath.Join(out, "std.out"),
		Stderr:    filepath.Join(out, "std.err"),
		Resources: model.ResourceRequest{MemPerNodeGB: 30, CoresPerNode: 4, GPUsPerNode: 2, Partition: "gpu"},
	}
}

func TestSlurm_SubmitAndComplete(t *testing.T) {
	fake := &fakeScheduler{
		sbatch: "4711;cluster1\n",
		states: []string{"", "RUNNING|0:0\n", "COMPLETED|0:0\n"},
	}
	s := NewSlurm(staging.NewRouter(), SlurmOptions{PollInterval: time.Millisecond, Runner: fake.run})
	inv := slurmInvocation(t)

	h, err := s.Submit(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "4711", h.ID())

	outcome, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StateSuccess, outcome.State)
	assert.Equal(t, "4711", outcome.SchedulerID)

	fake.mu.Lock()
	sbatch := fake.calls[0]
	fake.mu.Unlock()
	assert.Equal(t, []string{"sbatch", "--parsable", ScriptPath(inv)}, sbatch)

	script, err := os.ReadFile(ScriptPath(inv))
	require.NoError(t, err)
	assert.Contains(t, string(script), "#SBATCH --mem=30G\n")
	assert.Contains(t, string(script), "#SBATCH --cpus-per-task=4\n")
	assert.Contains(t, string(script), "#SBATCH --gres=gpu:2\n")
	assert.Contains(t, string(script), "#SBATCH --partition=gpu\n")

	// outputs staged after completion
	_, err = os.Stat(strings.TrimPrefix(inv.Outputs[0].URL, "file://"))
	assert.NoError(t, err)

	// a second wait sees the same outcome without polling again
	again, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcome, again)
}

func TestSlurm_Failed(t *testing.T) {
	fake := &fakeScheduler{sbatch: "99\n", states: []string{"OUT_OF_MEMORY|0:125\n"}}
	s := NewSlurm(staging.NewRouter(), SlurmOptions{PollInterval: time.Millisecond, Runner: fake.run})

	h, err := s.Submit(context.Background(), slurmInvocation(t))
	require.NoError(t, err)

	outcome, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, outcome.State)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "g16-0", invErr.InvocationID)
	assert.Equal(t, "OUT_OF_MEMORY", invErr.Reason)
}

func TestSlurm_WaitCancelled(t *testing.T) {
	fake := &fakeScheduler{sbatch: "5\n", states: []string{"PENDING|0:0\n"}}
	s := NewSlurm(staging.NewRouter(), SlurmOptions{PollInterval: time.Hour, Runner: fake.run})

	h, err := s.Submit(context.Background(), slurmInvocation(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	outcome, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, model.StateUnknown, outcome.State)
}

func TestSlurm_MissingInputDoesNotBlockLaterSubmissions(t *testing.T) {
	fake := &fakeScheduler{sbatch: "12\n", states: []string{"COMPLETED|0:0\n"}}
	s := NewSlurm(staging.NewRouter(), SlurmOptions{PollInterval: time.Millisecond, Runner: fake.run})

	missing := slurmInvocation(t)
	missing.Inputs = []model.StagedFile{{
		URL:       "file://" + filepath.ToSlash(filepath.Join(t.TempDir(), "missing.inp")),
		LocalPath: filepath.Join(missing.OutputDir, "missing.inp"),
	}}
	present := slurmInvocation(t)
	present.ID = "g16-1"
	present.Index = 1

	first, err := s.Submit(context.Background(), missing)
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), present)
	require.NoError(t, err)

	outcome, err := first.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, staging.ErrNotFound)
	assert.Equal(t, model.StateFailed, outcome.State)
	assert.Equal(t, "g16-0", outcome.InvocationID)

	outcome, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StateSuccess, outcome.State)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	sbatchCalls := 0
	for _, call := range fake.calls {
		if call[0] == "sbatch" {
			sbatchCalls++
			assert.Equal(t, ScriptPath(present), call[2])
		}
	}
	assert.Equal(t, 1, sbatchCalls)
}

func TestSlurm_BadSbatchOutput(t *testing.T) {
	fake := &fakeScheduler{sbatch: "sbatch: error: invalid partition\n"}
	s := NewSlurm(staging.NewRouter(), SlurmOptions{Runner: fake.run})

	_, err := s.Submit(context.Background(), slurmInvocation(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected sbatch output")
}

func TestParseJobID(t *testing.T) {
	cases := []struct {
		out  string
		want string
		ok   bool
	}{
		{"123\n", "123", true},
		{"123;cluster\n", "123", true},
		{"77_3\n", "77_3", true},
		{"", "", false},
		{"Submitted batch job 5", "", false},
	}
	for _, tc := range cases {
		got, err := ParseJobID([]byte(tc.out))
		if !tc.ok {
			assert.Error(t, err, tc.out)
			continue
		}
		require.NoError(t, err, tc.out)
		assert.Equal(t, tc.want, got)
	}
}

func TestMapSlurmState(t *testing.T) {
	assert.Equal(t, model.StateQueued, MapSlurmState("PENDING"))
	assert.Equal(t, model.StateRunning, MapSlurmState("RUNNING"))
	assert.Equal(t, model.StateSuccess, MapSlurmState("COMPLETED"))
	assert.Equal(t, model.StateFailed, MapSlurmState("CANCELLED+"))
	assert.Equal(t, model.StateFailed, MapSlurmState("TIMEOUT"))
	assert.Equal(t, model.StateUnknown, MapSlurmState("WEIRD"))
}

func TestSlurmHeader(t *testing.T) {
	inv := gaussianInvocation()
	inv.Resources.MemPerNodeGB = 0

	header := SlurmHeader(inv)
	assert.Contains(t, header, "#SBATCH --mem=0")
	assert.Contains(t, header, "#SBATCH --job-name=g16-0")
	assert.Contains(t, header, "#SBATCH --output=/runs/42/case_0/g16/std.out")
	assert.Contains(t, header, "#SBATCH --export=ALL")

	partitions := 0
	for _, line := range header {
		if strings.HasPrefix(line, "#SBATCH --partition") {
			partitions++
		}
		assert.NotContains(t, line, "gres")
	}
	assert.Equal(t, 1, partitions)

	inv.Resources.SchedulerOptions = "--exclusive"
	assert.Contains(t, SlurmHeader(inv), "#SBATCH --exclusive")
}
