package git

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

type fakeGit map[string]string

func (f fakeGit) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	out, ok := f[strings.Join(args, " ")]
	if !ok {
		return nil, errors.New("exit status 128")
	}
	return []byte(out), nil
}

func TestChangedFiles(t *testing.T) {
	fake := fakeGit{
		"rev-parse --show-toplevel":            "/repo\n",
		"diff --name-only":                     "inputs/a.inp\n",
		"diff --cached --name-only":            "inputs/b.inp\n",
		"ls-files --others --exclude-standard": "inputs/new.inp\n",
		"diff --name-only main":                "inputs/c.inp\ninputs/a.inp\n",
	}
	cd := NewChangeDetector("main", "/repo/inputs").WithRunner(fake.run)

	changed, err := cd.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"/repo/inputs/a.inp":   true,
		"/repo/inputs/b.inp":   true,
		"/repo/inputs/c.inp":   true,
		"/repo/inputs/new.inp": true,
	}, changed)
}

func TestChangedFiles_FallsBackToMergeBase(t *testing.T) {
	fake := fakeGit{
		"rev-parse --show-toplevel":   "/repo\n",
		"merge-base HEAD origin/main": "abc123\n",
		"diff --name-only abc123":     "x.inp\n",
	}
	changed, err := NewChangeDetector("", "/repo").WithRunner(fake.run).ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.True(t, changed["/repo/x.inp"])
}

func TestChangedFiles_NotARepo(t *testing.T) {
	_, err := NewChangeDetector("main", "/tmp").WithRunner(fakeGit{}.run).ChangedFiles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git working tree")
}

func TestFilterWorkItems(t *testing.T) {
	fake := fakeGit{
		"rev-parse --show-toplevel": "/repo\n",
		"diff --name-only main":     "inputs/b.inp\n",
	}
	items := []model.WorkItem{
		{Index: 0, Path: "inputs/a.inp"},
		{Index: 1, Path: "inputs/b.inp"},
		{Index: 2, Path: "/repo/inputs/c.inp"},
	}

	got, err := NewChangeDetector("main", "/repo").WithRunner(fake.run).FilterWorkItems(context.Background(), items, "/repo")
	require.NoError(t, err)
	assert.Equal(t, []model.WorkItem{{Index: 1, Path: "inputs/b.inp"}}, got)
}
