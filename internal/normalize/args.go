package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// InputDelimiter joins input file paths in the form's inp field.
const InputDelimiter = "___"

// DefaultPrefix is used when neither prefix nor outdir is supplied.
const DefaultPrefix = "results"

// Upper bounds for the per-invocation resource fields.
const (
	MaxCPUCount = 4096
	MaxRAMGB    = 1 << 20
	MaxGPUCount = 256
)

// FormArgs holds the raw strings as submitted by the workflow form
type FormArgs struct {
	JobNumber string
	Inp       string
	CPU       string
	RAM       string
	Partition string
	NumGPU    string
	ChkIfTrue string
	Prefix    string
	Outdir    string
}

// ArgumentError reports a missing or malformed form argument.
type ArgumentError struct {
	Field   string
	Value   string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("argument %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("argument %s=%q: %s", e.Field, e.Value, e.Message)
}

// JobParameters validates the raw form values and converts them into canonical form
func JobParameters(args FormArgs) (model.JobParameters, error) {
	if strings.TrimSpace(args.JobNumber) != "" && len(SplitInputs(args.Inp)) == 0 {
		return model.JobParameters{}, &ArgumentError{Field: "inp", Message: "at least one input is required"}
	}
	return SweepParameters(args)
}

// SweepParameters is JobParameters for runs whose work items come from a
// parameter sweep instead of the inp field.
func SweepParameters(args FormArgs) (model.JobParameters, error) {
	jobNumber := strings.TrimSpace(args.JobNumber)
	if jobNumber == "" {
		return model.JobParameters{}, &ArgumentError{Field: "job_number", Message: "is required"}
	}
	if strings.TrimSpace(args.CPU) == "" {
		return model.JobParameters{}, &ArgumentError{Field: "cpu", Message: "is required"}
	}

	cpu, err := parseCount("cpu", args.CPU, 1, MaxCPUCount)
	if err != nil {
		return model.JobParameters{}, err
	}
	ram, err := parseCount("ram", orDefault(args.RAM, "0"), 0, MaxRAMGB)
	if err != nil {
		return model.JobParameters{}, err
	}
	gpus, err := parseCount("num_gpu", orDefault(args.NumGPU, "0"), 0, MaxGPUCount)
	if err != nil {
		return model.JobParameters{}, err
	}
	chk, err := ParseFormBool("chk_if_true", args.ChkIfTrue)
	if err != nil {
		return model.JobParameters{}, err
	}

	prefix := strings.TrimSpace(args.Prefix)
	if prefix == "" {
		prefix = strings.TrimSpace(args.Outdir)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return model.JobParameters{
		JobNumber:     jobNumber,
		CPUCount:      cpu,
		RAMGB:         ram,
		GPUCount:      gpus,
		Checkpoint:    chk,
		Partition:     strings.TrimSpace(args.Partition),
		WorkingPrefix: prefix,
	}, nil
}

// SplitInputs splits the form's inp value on the input delimiter, dropping empty entries
func SplitInputs(inp string) []string {
	parts := strings.Split(inp, InputDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseFormBool accepts the literal "True"/"False" strings the form emits.
// An empty value is false.
func ParseFormBool(field, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	}
	return false, &ArgumentError{Field: field, Value: value, Message: `must be "True" or "False"`}
}

func parseCount(field, value string, min, max int) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, &ArgumentError{Field: field, Value: value, Message: "must be a base-10 integer"}
	}
	if n < int64(min) {
		return 0, &ArgumentError{Field: field, Value: value, Message: fmt.Sprintf("must be >= %d", min)}
	}
	if n > int64(max) {
		return 0, &ArgumentError{Field: field, Value: value, Message: fmt.Sprintf("must be <= %d", max)}
	}
	return int(n), nil
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
