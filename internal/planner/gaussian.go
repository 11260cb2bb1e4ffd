package planner

import (
	"fmt"
	"path/filepath"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// StageGaussian names the single stage of a Gaussian fan-out.
const StageGaussian = "g16"

// ScratchEnv is the environment variable Gaussian reads its scratch directory from.
const ScratchEnv = "GAUSS_SCRDIR"

// GaussianBuilder builds one g16 invocation per input file
type GaussianBuilder struct {
	Module      string // runtime module to load, e.g. "gaussian"
	Binary      string // program binary, e.g. "g16"
	RunDir      string // executor-side run directory
	ScratchRoot string
	BaseDir     string // directory relative input paths resolve against
	ResultsURL  string // staging destination root, see ResultsURL
	Resources   model.ResourceRequest
}

// Build returns the invocation for item under job parameters p. The result
// depends only on its inputs, so repeated builds yield identical commands.
func (b GaussianBuilder) Build(p model.JobParameters, item model.WorkItem) []model.Invocation {
	caseDir := CaseDir(item.Index)
	workDir := filepath.Join(b.RunDir, caseDir)
	outDir := filepath.Join(workDir, StageGaussian)
	base := item.BaseName()
	stagedInput := filepath.Join(workDir, filepath.Base(item.Path))
	scratch := filepath.Join(b.ScratchRoot, p.JobNumber, fmt.Sprintf("%s.%d", base, item.Index))

	args := []string{b.Binary}
	if p.RAMGB > 0 {
		args = append(args, fmt.Sprintf("-m=%dGB", p.RAMGB))
	}
	args = append(args, "-c="+CPURange(p.CPUCount))
	if g := GPURange(p.GPUCount); g != "" {
		args = append(args, "-g="+g)
	}

	inputs := []model.StagedFile{{
		URL:       FileURL(resolve(b.BaseDir, item.Path)),
		LocalPath: stagedInput,
	}}

	if p.Checkpoint {
		chk := CheckpointFile(item)
		args = append(args, "-oldchk="+chk, "-chk="+chk)
		inputs = append(inputs, model.StagedFile{
			URL:       FileURL(resolve(b.BaseDir, filepath.Join(filepath.Dir(item.Path), chk))),
			LocalPath: filepath.Join(outDir, chk),
			Optional:  true,
		})
	}

	modules := []string{}
	if b.Module != "" {
		modules = append(modules, b.Module)
	}

	return []model.Invocation{{
		ID:         fmt.Sprintf("%s-%d", StageGaussian, item.Index),
		Index:      item.Index,
		Stage:      StageGaussian,
		Item:       item,
		Modules:    modules,
		Env:        map[string]string{ScratchEnv: scratch},
		ScratchDir: scratch,
		OutputDir:  outDir,
		Program: model.Command{
			Args:   args,
			Dir:    outDir,
			Stdin:  stagedInput,
			Stdout: filepath.Join(outDir, base+".log"),
		},
		Inputs: inputs,
		Outputs: []model.StagedFile{{
			URL:       JoinURL(b.ResultsURL, caseDir),
			LocalPath: outDir,
		}},
		Stdout:    filepath.Join(outDir, "std.out"),
		Stderr:    filepath.Join(outDir, "std.err"),
		Resources: b.Resources,
	}}
}

// CPURange is the zero-based inclusive core range handed to the program for a
// scheduler allocation of cpuCount cores: one core is left to the launcher, so
// 8 cores give "0-6". A single core yields "0-0".
func CPURange(cpuCount int) string {
	upper := cpuCount - 2
	if upper < 0 {
		upper = 0
	}
	return fmt.Sprintf("0-%d", upper)
}

// GPURange is the device list for both input and output GPU roles, empty when
// no GPUs are requested.
func GPURange(gpuCount int) string {
	if gpuCount <= 0 {
		return ""
	}
	r := fmt.Sprintf("0-%d", gpuCount-1)
	return r + "=" + r
}

// CheckpointFile names the checkpoint for an item: <base>.chk
func CheckpointFile(item model.WorkItem) string {
	return item.BaseName() + ".chk"
}
