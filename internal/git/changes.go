// Package git narrows a run to the input files that changed in a git
// working tree, so a resubmission only recomputes modified molecules.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// Runner runs git with args in dir and returns stdout.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// ChangeDetector detects files that have changed in git
type ChangeDetector struct {
	baseRef string // ref to compare against (e.g., "main")
	dir     string
	run     Runner
}

// NewChangeDetector creates a change detector for the repository containing dir
func NewChangeDetector(baseRef, dir string) *ChangeDetector {
	if baseRef == "" {
		baseRef = "main"
	}
	return &ChangeDetector{baseRef: baseRef, dir: dir, run: runGit}
}

// WithRunner replaces the git invocation, for tests.
func (cd *ChangeDetector) WithRunner(r Runner) *ChangeDetector {
	cd.run = r
	return cd
}

// ChangedFiles returns absolute paths of files that differ from the base ref:
// unstaged, staged, untracked, and committed on this branch but not on base.
func (cd *ChangeDetector) ChangedFiles(ctx context.Context) (map[string]bool, error) {
	top, err := cd.run(ctx, cd.dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git working tree: %w", err)
	}
	root := strings.TrimSpace(string(top))

	changed := make(map[string]bool)
	add := func(out []byte) {
		for _, f := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if f = strings.TrimSpace(f); f != "" {
				changed[filepath.Join(root, filepath.FromSlash(f))] = true
			}
		}
	}

	for _, args := range [][]string{
		{"diff", "--name-only"},
		{"diff", "--cached", "--name-only"},
		{"ls-files", "--others", "--exclude-standard"},
	} {
		if out, err := cd.run(ctx, root, args...); err == nil {
			add(out)
		}
	}

	// Base may exist only on the remote, as in CI checkouts.
	out, err := cd.run(ctx, root, "diff", "--name-only", cd.baseRef)
	if err != nil {
		out, err = cd.run(ctx, root, "diff", "--name-only", "origin/"+cd.baseRef)
	}
	if err != nil {
		base, mbErr := cd.mergeBase(ctx, root)
		if mbErr != nil {
			return nil, fmt.Errorf("cannot compare against %s: %w", cd.baseRef, mbErr)
		}
		out, err = cd.run(ctx, root, "diff", "--name-only", base)
		if err != nil {
			return nil, err
		}
	}
	add(out)

	return changed, nil
}

func (cd *ChangeDetector) mergeBase(ctx context.Context, root string) (string, error) {
	var lastErr error
	for _, args := range [][]string{
		{"merge-base", "--fork-point", cd.baseRef},
		{"merge-base", "HEAD", cd.baseRef},
		{"merge-base", "HEAD", "origin/" + cd.baseRef},
	} {
		out, err := cd.run(ctx, root, args...)
		if err == nil && len(strings.TrimSpace(string(out))) > 0 {
			return strings.TrimSpace(string(out)), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no merge base")
	}
	return "", lastErr
}

// FilterWorkItems keeps the items whose file changed. Paths are resolved
// against baseDir; indexes are preserved so case directories stay stable
// between full and partial runs.
func (cd *ChangeDetector) FilterWorkItems(ctx context.Context, items []model.WorkItem, baseDir string) ([]model.WorkItem, error) {
	changed, err := cd.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.WorkItem, 0, len(items))
	for _, item := range items {
		p := item.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		if changed[filepath.Clean(p)] {
			out = append(out, item)
		}
	}
	return out, nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}
