package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/sweep"
	"gopkg.in/yaml.v3"
)

// SweepFile is the on-disk form of a parameter sweep definition
type SweepFile struct {
	Parameters []sweep.Parameter `yaml:"parameters" json:"parameters"`
}

// ExpandWorkItems turns the form's input list into indexed work items.
// Entries containing glob patterns (*, ?, [, {) are expanded with doublestar,
// including ** for recursive matches; literal entries are kept as given, repeats
// included. A glob match already present in the list is not added again.
func ExpandWorkItems(paths []string) ([]model.WorkItem, error) {
	items := make([]model.WorkItem, 0, len(paths))
	seen := make(map[string]bool)

	add := func(p string) {
		seen[p] = true
		items = append(items, model.WorkItem{Index: len(items), Path: p})
	}

	for _, p := range paths {
		if !hasMeta(p) {
			add(p)
			continue
		}

		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid input pattern %s", p)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate input pattern %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("input pattern %s matched no files", p)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				add(m)
			}
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no work items to run")
	}
	return items, nil
}

// CaseWorkItems wraps generated sweep cases as work items
func CaseWorkItems(cases []string) []model.WorkItem {
	items := make([]model.WorkItem, len(cases))
	for i, c := range cases {
		items[i] = model.WorkItem{Index: i, Case: c}
	}
	return items
}

// LoadSweepFile loads and validates a YAML sweep definition
func LoadSweepFile(path string) ([]sweep.Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep file: %w", err)
	}

	var file SweepFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sweep YAML: %w", err)
	}
	if len(file.Parameters) == 0 {
		return nil, fmt.Errorf("sweep file %s defines no parameters", path)
	}

	for i := range file.Parameters {
		if file.Parameters[i].Kind == "" {
			file.Parameters[i].Kind = sweep.KindInput
		}
		if err := file.Parameters[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := sweep.CheckCaseCount(file.Parameters); err != nil {
		return nil, err
	}
	return file.Parameters, nil
}

// LoadPlan reads a plan file written by the plan command (json or yaml)
func LoadPlan(path string) (*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var plan model.Plan
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &plan); err != nil {
			if yamlErr := yaml.Unmarshal(data, &plan); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse plan file as JSON or YAML: %w", err)
			}
		}
	}

	if len(plan.Invocations) == 0 {
		return nil, fmt.Errorf("plan contains no invocations")
	}

	return &plan, nil
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
