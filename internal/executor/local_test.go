package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

func localInvocation(dir, id string, args ...string) model.Invocation {
	out := filepath.Join(dir, "runs", id)
	return model.Invocation{
		ID:        id,
		OutputDir: out,
		Program:   model.Command{Args: args, Dir: out},
		Stdout:    filepath.Join(out, "std.out"),
		Stderr:    filepath.Join(out, "std.err"),
	}
}

func TestLocal_RunsAndStages(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "inputs", "a.inp")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.WriteFile(input, []byte("water\n"), 0o644))

	inv := localInvocation(dir, "g16-0", "sh", "-c", "cat ../a.inp > result.txt; echo done")
	inv.Inputs = []model.StagedFile{{URL: "file://" + filepath.ToSlash(input), LocalPath: filepath.Join(dir, "runs", "a.inp")}}
	inv.Outputs = []model.StagedFile{{URL: "file://" + filepath.ToSlash(filepath.Join(dir, "results", "case_0")), LocalPath: inv.OutputDir}}
	inv.ScratchDir = filepath.Join(dir, "scratch", "g16-0")

	l := NewLocal(staging.NewRouter(), 2)
	h, err := l.Submit(context.Background(), inv)
	require.NoError(t, err)

	outcome, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StateSuccess, outcome.State)
	assert.Equal(t, 0, outcome.ExitCode)

	result, err := os.ReadFile(filepath.Join(dir, "results", "case_0", "result.txt"))
	require.NoError(t, err)
	assert.Equal(t, "water\n", string(result))

	stdout, err := os.ReadFile(inv.Stdout)
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(stdout))

	_, err = os.Stat(inv.ScratchDir)
	assert.True(t, os.IsNotExist(err), "scratch removed after exit")
}

func TestLocal_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	inv := localInvocation(dir, "g16-1", "sh", "-c", "echo boom >&2; exit 3")
	inv.Outputs = []model.StagedFile{{URL: "file://" + filepath.ToSlash(filepath.Join(dir, "results")), LocalPath: inv.OutputDir}}
	inv.ScratchDir = filepath.Join(dir, "scratch", "g16-1")

	h, err := NewLocal(staging.NewRouter(), 1).Submit(context.Background(), inv)
	require.NoError(t, err)

	outcome, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, outcome.State)
	assert.Equal(t, 3, outcome.ExitCode)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 3, invErr.ExitCode)

	stderr, err := os.ReadFile(inv.Stderr)
	require.NoError(t, err)
	assert.Equal(t, "boom\n", string(stderr))

	_, err = os.Stat(filepath.Join(dir, "results"))
	assert.True(t, os.IsNotExist(err), "failed invocations are not staged out")

	_, err = os.Stat(inv.ScratchDir)
	assert.True(t, os.IsNotExist(err), "scratch removed after a failed exit")
}

func TestLocal_MissingInputFails(t *testing.T) {
	dir := t.TempDir()
	inv := localInvocation(dir, "g16-2", "true")
	inv.Inputs = []model.StagedFile{{URL: "file://" + filepath.ToSlash(filepath.Join(dir, "nope.inp")), LocalPath: filepath.Join(dir, "x")}}

	h, err := NewLocal(staging.NewRouter(), 1).Submit(context.Background(), inv)
	require.NoError(t, err)

	outcome, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, outcome.State)
	assert.True(t, errors.Is(err, staging.ErrNotFound))
}

func TestLocal_ManyInParallel(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(staging.NewRouter(), 3)

	handles := make([]Handle, 0, 6)
	for i := 0; i < 6; i++ {
		inv := localInvocation(dir, "case-"+string(rune('a'+i)), "sh", "-c", "exit 0")
		h, err := l.Submit(context.Background(), inv)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		outcome, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.StateSuccess, outcome.State)
	}
}

func TestDryRun_PrintsScript(t *testing.T) {
	var buf bytes.Buffer
	d := NewDryRun(&buf)

	h, err := d.Submit(context.Background(), gaussianInvocation())
	require.NoError(t, err)

	outcome, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StateSuccess, outcome.State)
	assert.Contains(t, buf.String(), "#SBATCH --mem=30G")
	assert.Contains(t, buf.String(), "g16 -m=10GB -c=0-2")
}

func TestNew(t *testing.T) {
	for _, kind := range []string{config.KindLocal, config.KindSlurm, config.KindDryRun} {
		e, err := New(config.ExecutorConfig{Kind: kind, MaxParallel: 1}, staging.NewRouter(), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, kind, e.Name())
	}

	_, err := New(config.ExecutorConfig{Kind: "pbs"}, staging.NewRouter(), nil)
	assert.Error(t, err)
}
