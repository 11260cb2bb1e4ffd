package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/git"
	"github.com/parallelworks/gaussian-workflow-demo/internal/loader"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/normalize"
	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
	"github.com/parallelworks/gaussian-workflow-demo/internal/output"
	"github.com/parallelworks/gaussian-workflow-demo/internal/planner"
	"github.com/parallelworks/gaussian-workflow-demo/internal/schema"
	"github.com/parallelworks/gaussian-workflow-demo/internal/sweep"
)

// loadConfig validates the config file, if any, and resolves flags over it.
func loadConfig(ctx context.Context) (config.Config, error) {
	if configFile != "" {
		validator, err := schema.NewValidator()
		if err != nil {
			return config.Config{}, err
		}
		if err := validator.ValidateConfigFile(configFile); err != nil {
			return config.Config{}, err
		}
	}

	overrides := map[string]any{}
	if executorKind != "" {
		overrides["executor"] = map[string]any{"kind": executorKind}
	}
	if waitPolicy != "" {
		overrides["wait_policy"] = waitPolicy
	}

	cfg, err := config.Load(ctx, configFile, overrides)
	if err != nil {
		return config.Config{}, err
	}
	if !verbose {
		observability.InitCLILoggerLevel(serviceName, cfg.Logging.Level)
	}
	return cfg, nil
}

// runLayout holds the directories shared by both pipelines.
type runLayout struct {
	cwd     string
	runDir  string
	results string
}

func layout(cfg config.Config, p model.JobParameters) (runLayout, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return runLayout{}, err
	}
	runDir, err := filepath.Abs(filepath.Join(cfg.Executor.RunDir, p.JobNumber))
	if err != nil {
		return runLayout{}, err
	}
	return runLayout{
		cwd:     cwd,
		runDir:  runDir,
		results: planner.ResultsURL(p.WorkingPrefix, cwd),
	}, nil
}

// buildGaussianPlan turns the form into one g16 invocation per input file.
func buildGaussianPlan(ctx context.Context) (*model.Plan, config.Config, error) {
	progress("□ Normalizing form arguments...")
	params, err := normalize.JobParameters(form)
	if err != nil {
		return nil, config.Config{}, err
	}

	progress("□ Loading executor config...")
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, config.Config{}, err
	}
	jobCfg := cfg.ForJob(params)

	progress("□ Expanding input files...")
	items, err := loader.ExpandWorkItems(normalize.SplitInputs(form.Inp))
	if err != nil {
		return nil, jobCfg, err
	}
	dirs, err := layout(jobCfg, params)
	if err != nil {
		return nil, jobCfg, err
	}

	if changedOnly {
		progress("□ Selecting inputs changed since %s...", baseRef)
		all := len(items)
		items, err = git.NewChangeDetector(baseRef, dirs.cwd).FilterWorkItems(ctx, items, dirs.cwd)
		if err != nil {
			return nil, jobCfg, err
		}
		observability.CLILogger.Info("Filtered inputs by git changes",
			zap.Int("total", all),
			zap.Int("changed", len(items)),
		)
		if len(items) == 0 {
			return nil, jobCfg, fmt.Errorf("no input files changed since %s", baseRef)
		}
	}
	progress("  %d input files", len(items))

	builder := planner.GaussianBuilder{
		Module:      jobCfg.Program.Module,
		Binary:      jobCfg.Program.Binary,
		RunDir:      dirs.runDir,
		ScratchRoot: jobCfg.Executor.ScratchRoot,
		BaseDir:     dirs.cwd,
		ResultsURL:  dirs.results,
		Resources:   jobCfg.Resources(),
	}

	progress("□ Building invocations...")
	plan, err := planner.New(builder).Plan(model.Metadata{
		Name:        "job-" + params.JobNumber,
		Description: fmt.Sprintf("%s fan-out over %d inputs", jobCfg.Program.Binary, len(items)),
		RunID:       output.NewRunID(),
	}, params, items)
	return plan, jobCfg, err
}

// buildSweepPlan turns a parameter sweep into simulate and render invocations.
func buildSweepPlan(ctx context.Context) (*model.Plan, config.Config, error) {
	progress("□ Normalizing form arguments...")
	params, err := normalize.SweepParameters(form)
	if err != nil {
		return nil, config.Config{}, err
	}

	progress("□ Loading executor config...")
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, config.Config{}, err
	}
	jobCfg := cfg.ForJob(params)

	progress("□ Expanding sweep...")
	var sweepDef []sweep.Parameter
	switch {
	case sweepParams != "":
		sweepDef, err = sweep.Parse(sweepParams)
	case sweepFile != "":
		sweepDef, err = loader.LoadSweepFile(sweepFile)
	default:
		err = fmt.Errorf("one of --params or --sweep-file is required")
	}
	if err != nil {
		return nil, jobCfg, err
	}
	items := loader.CaseWorkItems(sweep.Cases(sweepDef))
	progress("  %d cases from %s", len(items), sweep.Format(sweepDef))

	dirs, err := layout(jobCfg, params)
	if err != nil {
		return nil, jobCfg, err
	}
	source, err := filepath.Abs(jobCfg.MD.SourceDir)
	if err != nil {
		return nil, jobCfg, err
	}
	runRoot, err := filepath.Abs(jobCfg.Executor.RunDir)
	if err != nil {
		return nil, jobCfg, err
	}
	exclude := []string{runRoot}
	if results := params.WorkingPrefix; !strings.Contains(results, "://") {
		if !filepath.IsAbs(results) {
			results = filepath.Join(dirs.cwd, results)
		}
		exclude = append(exclude, results)
	}

	builder := planner.MDBuilder{
		SourceDir:      source,
		SimulateScript: jobCfg.MD.SimulateScript,
		RenderScript:   jobCfg.MD.RenderScript,
		RunDir:         dirs.runDir,
		ResultsURL:     dirs.results,
		Exclude:        exclude,
		Resources:      jobCfg.Resources(),
	}

	progress("□ Building invocations...")
	plan, err := planner.New(builder).Plan(model.Metadata{
		Name:        "job-" + params.JobNumber,
		Description: fmt.Sprintf("md sweep over %d cases", len(items)),
		RunID:       output.NewRunID(),
	}, params, items)
	return plan, jobCfg, err
}
