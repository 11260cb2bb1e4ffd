package model

import (
	"path/filepath"
	"strings"
)

// JobParameters is the run-wide parameter record read from the launch form.
// It is immutable once normalized.
type JobParameters struct {
	JobNumber     string `yaml:"jobNumber" json:"jobNumber"`
	CPUCount      int    `yaml:"cpuCount" json:"cpuCount"`
	RAMGB         int    `yaml:"ramGB" json:"ramGB"` // 0 = whole node
	GPUCount      int    `yaml:"gpuCount" json:"gpuCount"`
	Checkpoint    bool   `yaml:"checkpoint" json:"checkpoint"`
	Partition     string `yaml:"partition" json:"partition"`
	WorkingPrefix string `yaml:"workingPrefix" json:"workingPrefix"`
}

// WorkItem is one independent unit of input: a file path or a generated sweep case
type WorkItem struct {
	Index int    `yaml:"index" json:"index"`
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Case  string `yaml:"case,omitempty" json:"case,omitempty"`
}

// BaseName returns the file name of Path without directory and extension.
func (w WorkItem) BaseName() string {
	base := filepath.Base(w.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Command is a single argv invocation with its environment and redirections.
// Quoting is applied only when a command is rendered into a script.
type Command struct {
	Args   []string          `yaml:"args" json:"args"`
	Env    map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Dir    string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Stdin  string            `yaml:"stdin,omitempty" json:"stdin,omitempty"`
	Stdout string            `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Stderr string            `yaml:"stderr,omitempty" json:"stderr,omitempty"`
}

// StagedFile pairs a source/destination URL with the path used on the compute side.
// Optional inputs are skipped when the source does not exist. Exclude lists
// local paths left out when a directory tree is copied.
type StagedFile struct {
	URL       string   `yaml:"url" json:"url"`
	LocalPath string   `yaml:"localPath" json:"localPath"`
	Optional  bool     `yaml:"optional,omitempty" json:"optional,omitempty"`
	Exclude   []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// ResourceRequest is what the executor asks the batch scheduler for
type ResourceRequest struct {
	MemPerNodeGB     int    `yaml:"memPerNodeGB" json:"memPerNodeGB"` // 0 = all node memory
	Partition        string `yaml:"partition,omitempty" json:"partition,omitempty"`
	CoresPerNode     int    `yaml:"coresPerNode" json:"coresPerNode"`
	GPUsPerNode      int    `yaml:"gpusPerNode,omitempty" json:"gpusPerNode,omitempty"`
	SchedulerOptions string `yaml:"schedulerOptions,omitempty" json:"schedulerOptions,omitempty"`
}

// Invocation is a fully parameterized, ready-to-execute command for one work item
type Invocation struct {
	ID         string            `yaml:"id" json:"id"`
	Index      int               `yaml:"index" json:"index"`
	Stage      string            `yaml:"stage" json:"stage"`
	Item       WorkItem          `yaml:"item" json:"item"`
	Modules    []string          `yaml:"modules,omitempty" json:"modules,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	ScratchDir string            `yaml:"scratchDir,omitempty" json:"scratchDir,omitempty"`
	OutputDir  string            `yaml:"outputDir" json:"outputDir"`
	Setup      []Command         `yaml:"setup,omitempty" json:"setup,omitempty"`
	Program    Command           `yaml:"program" json:"program"`
	Inputs     []StagedFile      `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs    []StagedFile      `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Stdout     string            `yaml:"stdout" json:"stdout"`
	Stderr     string            `yaml:"stderr" json:"stderr"`
	Resources  ResourceRequest   `yaml:"resources" json:"resources"`
	DependsOn  []string          `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}
