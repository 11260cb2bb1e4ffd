package planner

import (
	"fmt"
	"path/filepath"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// Stages of the molecular-dynamics pipeline.
const (
	StageSimulate = "md"
	StageRender   = "render"
)

// MDBuilder builds the simulate and render invocations for one sweep case.
// Render for case i consumes the staged output of simulate for case i.
type MDBuilder struct {
	SourceDir      string // local source tree, staged read-only to <run_dir>/src
	SimulateScript string // relative to the source tree
	RenderScript   string // relative to the source tree
	RunDir         string
	ResultsURL     string
	Exclude        []string // local paths under SourceDir not staged, e.g. run and results roots
	Resources      model.ResourceRequest
}

// Build returns [simulate, render] for the case item.
func (b MDBuilder) Build(p model.JobParameters, item model.WorkItem) []model.Invocation {
	caseDir := CaseDir(item.Index)
	workDir := filepath.Join(b.RunDir, caseDir)
	srcDir := filepath.Join(b.RunDir, "src")
	simDir := filepath.Join(workDir, StageSimulate)
	renderIn := filepath.Join(workDir, StageRender+"_input")
	renderDir := filepath.Join(workDir, StageRender)

	source := model.StagedFile{URL: FileURL(b.SourceDir), LocalPath: srcDir, Exclude: b.Exclude}
	simResults := JoinURL(b.ResultsURL, caseDir, StageSimulate)

	simulate := model.Invocation{
		ID:        fmt.Sprintf("%s-%d", StageSimulate, item.Index),
		Index:     item.Index,
		Stage:     StageSimulate,
		Item:      item,
		OutputDir: simDir,
		Program: model.Command{
			Args: []string{filepath.Join(srcDir, b.SimulateScript), item.Case, "metric.out", "trj.out"},
			Dir:  simDir,
		},
		Inputs:    []model.StagedFile{source},
		Outputs:   []model.StagedFile{{URL: simResults, LocalPath: simDir}},
		Stdout:    filepath.Join(simDir, "std.out"),
		Stderr:    filepath.Join(simDir, "std.err"),
		Resources: b.Resources,
	}

	render := model.Invocation{
		ID:        fmt.Sprintf("%s-%d", StageRender, item.Index),
		Index:     item.Index,
		Stage:     StageRender,
		Item:      item,
		OutputDir: renderDir,
		Program: model.Command{
			Args: []string{filepath.Join(srcDir, b.RenderScript), renderIn, renderDir},
			Dir:  renderDir,
		},
		Inputs: []model.StagedFile{
			source,
			{URL: simResults, LocalPath: renderIn},
		},
		Outputs:   []model.StagedFile{{URL: JoinURL(b.ResultsURL, caseDir, StageRender), LocalPath: renderDir}},
		Stdout:    filepath.Join(renderDir, "std.out"),
		Stderr:    filepath.Join(renderDir, "std.err"),
		Resources: b.Resources,
		DependsOn: []string{simulate.ID},
	}

	return []model.Invocation{simulate, render}
}
