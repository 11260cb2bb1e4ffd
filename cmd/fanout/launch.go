package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/executor"
	"github.com/parallelworks/gaussian-workflow-demo/internal/launcher"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
	"github.com/parallelworks/gaussian-workflow-demo/internal/output"
	"github.com/parallelworks/gaussian-workflow-demo/internal/staging"
)

// progress prints a status line. With --json, stdout carries events only.
func progress(format string, args ...any) {
	var w io.Writer = os.Stdout
	if jsonOutput {
		w = os.Stderr
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// launchPlan submits plan with the configured executor and waits for it.
func launchPlan(ctx context.Context, cfg config.Config, plan *model.Plan) error {
	policy, err := launcher.ParsePolicy(cfg.WaitPolicy)
	if err != nil {
		return err
	}

	stager := staging.NewRouter().Register("s3", staging.NewS3Stager(cfg.Staging.S3))
	var scripts io.Writer = os.Stdout
	if jsonOutput {
		scripts = os.Stderr
	}
	exec, err := executor.New(cfg.Executor, stager, scripts)
	if err != nil {
		return err
	}

	var events output.Writer = output.NopWriter{}
	if jsonOutput {
		events = output.NewJSONLWriter(os.Stdout, plan.Metadata.RunID, exec.Name())
	}
	defer events.Close()

	l := launcher.New(exec, launcher.WithOutput(events))

	progress("□ Submitting %d invocations to %s (%s)...", len(plan.Invocations), cfg.Executor.Name, exec.Name())
	handles, launchErr := l.Launch(ctx, plan)
	if launchErr != nil {
		observability.CLILogger.Error("Launch aborted", zap.Error(launchErr))
		if len(handles) == 0 {
			return launchErr
		}
		policy = launcher.CollectAll
	}

	progress("□ Waiting for %d invocations (%s)...", len(handles), policy)
	summary, err := l.Wait(ctx, handles, policy)
	progress("%s %d succeeded, %d failed, %d pending in %s",
		mark(err == nil && launchErr == nil), summary.Succeeded, summary.Failed, summary.Pending, summary.Duration.Round(time.Millisecond))

	if launchErr != nil {
		return launchErr
	}
	return err
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
