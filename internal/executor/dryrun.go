package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// DryRun prints each rendered script instead of running it. Every
// invocation completes immediately with success.
type DryRun struct {
	mu  sync.Mutex
	out io.Writer
}

// NewDryRun creates a dry-run executor writing scripts to out.
func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{out: out}
}

// Name returns the executor kind.
func (d *DryRun) Name() string { return "dryrun" }

// Submit prints the script for inv.
func (d *DryRun) Submit(_ context.Context, inv model.Invocation) (Handle, error) {
	script, err := RenderScript(inv, SlurmHeader(inv)...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	fmt.Fprintf(d.out, "→ %s (%s)\n", inv.ID, ScriptPath(inv))
	for _, f := range inv.Inputs {
		fmt.Fprintf(d.out, "  stage in  %s → %s\n", f.URL, f.LocalPath)
	}
	for _, f := range inv.Outputs {
		fmt.Fprintf(d.out, "  stage out %s → %s\n", f.LocalPath, f.URL)
	}
	fmt.Fprintln(d.out, script)
	d.mu.Unlock()

	now := time.Now().UTC()
	h := &handle{id: "dryrun-" + inv.ID, inv: inv, res: newResult()}
	h.res.set(model.Outcome{
		InvocationID: inv.ID,
		Index:        inv.Index,
		State:        model.StateSuccess,
		SchedulerID:  h.id,
		StartedAt:    now,
		EndedAt:      now,
	}, nil)
	return h, nil
}
