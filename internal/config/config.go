// Package config loads the executor configuration the launcher hands to its
// executor. Values resolve in order: defaults, config file, FANOUT_* environment,
// runtime overrides. A loaded Config is a plain value; deriving a per-job
// configuration returns a new value and never mutates the original.
package config

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FANOUT"

// Executor kinds.
const (
	KindLocal  = "local"
	KindSlurm  = "slurm"
	KindDryRun = "dryrun"
)

// Wait policies.
const (
	WaitCollectAll = "collect-all"
	WaitFailFast   = "fail-fast"
)

// Config is the complete launcher configuration.
type Config struct {
	Executor      ExecutorConfig `mapstructure:"executor"`
	GPUPartitions []string       `mapstructure:"gpu_partitions"`
	Program       ProgramConfig  `mapstructure:"program"`
	MD            MDConfig       `mapstructure:"md"`
	Staging       StagingConfig  `mapstructure:"staging"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	WaitPolicy    string         `mapstructure:"wait_policy"`
}

// ExecutorConfig mirrors the resource-request record of the executor.
type ExecutorConfig struct {
	Name             string        `mapstructure:"name"`
	Kind             string        `mapstructure:"kind"`
	RunDir           string        `mapstructure:"run_dir"`
	MemPerNode       int           `mapstructure:"mem_per_node"`
	Partition        string        `mapstructure:"partition"`
	CoresPerNode     int           `mapstructure:"cores_per_node"`
	GPUsPerNode      int           `mapstructure:"gpus_per_node"`
	SchedulerOptions string        `mapstructure:"scheduler_options"`
	MaxParallel      int           `mapstructure:"max_parallel"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	SubmitRate       float64       `mapstructure:"submit_rate"`
	ScratchRoot      string        `mapstructure:"scratch_root"`
}

// ProgramConfig describes the external chemistry program.
type ProgramConfig struct {
	Module           string `mapstructure:"module"`
	Binary           string `mapstructure:"binary"`
	MemoryOverheadGB int    `mapstructure:"memory_overhead_gb"`
}

// MDConfig points at the molecular-dynamics and rendering scripts.
type MDConfig struct {
	SourceDir      string `mapstructure:"source_dir"`
	SimulateScript string `mapstructure:"simulate_script"`
	RenderScript   string `mapstructure:"render_script"`
}

// StagingConfig configures remote staging backends.
type StagingConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config configures s3:// staging.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}

var defaults = map[string]any{
	"executor.name":                "cluster1",
	"executor.kind":                KindLocal,
	"executor.run_dir":             "./runs",
	"executor.mem_per_node":        0,
	"executor.partition":           "",
	"executor.cores_per_node":      1,
	"executor.gpus_per_node":       0,
	"executor.scheduler_options":   "",
	"executor.max_parallel":        4,
	"executor.poll_interval":       "30s",
	"executor.submit_rate":         2.0,
	"executor.scratch_root":        "/tmp",
	"gpu_partitions":               []string{"gpu"},
	"program.module":               "gaussian",
	"program.binary":               "g16",
	"program.memory_overhead_gb":   20,
	"md.source_dir":                ".",
	"md.simulate_script":           "mdlite/runMD.sh",
	"md.render_script":             "render/renderframe.sh",
	"staging.s3.region":            "",
	"staging.s3.endpoint":          "",
	"staging.s3.profile":           "",
	"staging.s3.access_key_id":     "",
	"staging.s3.secret_access_key": "",
	"staging.s3.force_path_style":  false,
	"logging.level":                "info",
	"wait_policy":                  WaitCollectAll,
}

// Load resolves the configuration. path may be empty to skip the file layer.
// Overrides are nested maps (e.g. {"executor": {"kind": "slurm"}}) and win
// over every other source.
func Load(ctx context.Context, path string, overrides ...map[string]any) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the launcher depends on.
func (c Config) Validate() error {
	switch c.Executor.Kind {
	case KindLocal, KindSlurm, KindDryRun:
	default:
		return &ConfigError{Field: "executor.kind", Message: fmt.Sprintf("unsupported executor %q", c.Executor.Kind)}
	}
	if strings.TrimSpace(c.Executor.RunDir) == "" {
		return &ConfigError{Field: "executor.run_dir", Message: "run directory is required"}
	}
	if c.Executor.MemPerNode < 0 {
		return &ConfigError{Field: "executor.mem_per_node", Message: "must be >= 0"}
	}
	if c.Executor.CoresPerNode < 1 {
		return &ConfigError{Field: "executor.cores_per_node", Message: "must be >= 1"}
	}
	if c.Executor.MaxParallel < 0 {
		return &ConfigError{Field: "executor.max_parallel", Message: "must be >= 0"}
	}
	if c.Executor.Kind == KindSlurm && c.Executor.PollInterval <= 0 {
		return &ConfigError{Field: "executor.poll_interval", Message: "must be > 0 for slurm"}
	}
	if c.Program.MemoryOverheadGB < 0 {
		return &ConfigError{Field: "program.memory_overhead_gb", Message: "must be >= 0"}
	}
	if strings.TrimSpace(c.Program.Binary) == "" {
		return &ConfigError{Field: "program.binary", Message: "program binary is required"}
	}
	switch c.WaitPolicy {
	case WaitCollectAll, WaitFailFast:
	default:
		return &ConfigError{Field: "wait_policy", Message: fmt.Sprintf("unsupported wait policy %q", c.WaitPolicy)}
	}
	if (c.Staging.S3.AccessKeyID != "") != (c.Staging.S3.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "staging.s3.access_key_id/secret_access_key",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// ForJob derives the per-run configuration from the job parameters.
// The receiver is left untouched; callers get a fresh value.
func (c Config) ForJob(p model.JobParameters) Config {
	out := c
	out.GPUPartitions = append([]string(nil), c.GPUPartitions...)

	out.Executor.MemPerNode = RequestMemoryGB(p.RAMGB, c.Program.MemoryOverheadGB)
	out.Executor.CoresPerNode = p.CPUCount
	if p.Partition != "" {
		out.Executor.Partition = p.Partition
	}

	out.Executor.GPUsPerNode = 0
	if out.IsGPUPartition(out.Executor.Partition) && p.GPUCount > 0 {
		out.Executor.GPUsPerNode = p.GPUCount
	}

	directives := make([]string, 0, 2)
	if out.Executor.Partition != "" {
		directives = append(directives, "#SBATCH --partition="+out.Executor.Partition)
	}
	directives = append(directives, "#SBATCH --export=ALL")
	out.Executor.SchedulerOptions = appendDirectives(c.Executor.SchedulerOptions, directives...)

	return out
}

// Resources returns the resource request carried by each invocation.
func (c Config) Resources() model.ResourceRequest {
	return model.ResourceRequest{
		MemPerNodeGB:     c.Executor.MemPerNode,
		Partition:        c.Executor.Partition,
		CoresPerNode:     c.Executor.CoresPerNode,
		GPUsPerNode:      c.Executor.GPUsPerNode,
		SchedulerOptions: c.Executor.SchedulerOptions,
	}
}

// IsGPUPartition reports whether the named partition schedules GPUs.
func (c Config) IsGPUPartition(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, p := range c.GPUPartitions {
		if strings.ToLower(strings.TrimSpace(p)) == name {
			return true
		}
	}
	return strings.Contains(name, "gpu")
}

// RequestMemoryGB is the node memory to request for a program limit of ramGB.
// Zero means the whole node and passes through unchanged. The sum saturates
// instead of wrapping.
func RequestMemoryGB(ramGB, overheadGB int) int {
	if ramGB <= 0 {
		return 0
	}
	if overheadGB > math.MaxInt-ramGB {
		return math.MaxInt
	}
	return ramGB + overheadGB
}

func appendDirectives(existing string, directives ...string) string {
	lines := make([]string, 0, len(directives)+1)
	if s := strings.TrimSpace(existing); s != "" {
		lines = append(lines, s)
	}
	for _, d := range directives {
		if !strings.Contains(existing, d) {
			lines = append(lines, d)
		}
	}
	return strings.Join(lines, "\n")
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
