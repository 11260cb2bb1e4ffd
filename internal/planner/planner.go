package planner

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// Plan header values.
const (
	APIVersion = "fanout.parallel.works/v1"
	PlanKind   = "Plan"
)

// Builder turns one work item into the invocations that process it
type Builder interface {
	Build(p model.JobParameters, item model.WorkItem) []model.Invocation
}

// Planner builds execution-ready plans from work items
type Planner struct {
	builder Builder
}

// New creates a planner around a builder
func New(b Builder) *Planner {
	return &Planner{builder: b}
}

// Plan builds every work item and orders the result for submission.
func (p *Planner) Plan(meta model.Metadata, params model.JobParameters, items []model.WorkItem) (*model.Plan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no work items to plan")
	}

	invocations := make([]model.Invocation, 0, len(items))
	for _, item := range items {
		invocations = append(invocations, p.builder.Build(params, item)...)
	}

	plan, err := BuildPlan(invocations)
	if err != nil {
		return nil, err
	}
	plan.Metadata = meta
	plan.Parameters = params
	return plan, nil
}

// BuildPlan validates invocations and orders them so every invocation follows
// the ones it depends on.
func BuildPlan(invocations []model.Invocation) (*model.Plan, error) {
	ids := make(map[string]bool, len(invocations))
	outDirs := make(map[string]string, len(invocations))
	for _, inv := range invocations {
		if inv.ID == "" {
			return nil, fmt.Errorf("invocation %d has no id", inv.Index)
		}
		if ids[inv.ID] {
			return nil, fmt.Errorf("duplicate invocation id %s", inv.ID)
		}
		ids[inv.ID] = true

		dir := filepath.Clean(inv.OutputDir)
		if other, ok := outDirs[dir]; ok {
			return nil, fmt.Errorf("invocations %s and %s share output directory %s", other, inv.ID, dir)
		}
		outDirs[dir] = inv.ID
	}

	graph := NewInvocationGraph(invocations)
	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	sorted := make([]model.Invocation, 0, len(order))
	for _, id := range order {
		sorted = append(sorted, *graph.invocations[id])
	}

	return &model.Plan{
		APIVersion:  APIVersion,
		Kind:        PlanKind,
		Invocations: sorted,
	}, nil
}

// CaseDir is the per-item directory name: case_<index>
func CaseDir(index int) string {
	return fmt.Sprintf("case_%d", index)
}

// ResultsURL resolves the working prefix to a staging URL. Prefixes that
// already carry a scheme are used as-is; anything else is a path under baseDir.
func ResultsURL(prefix, baseDir string) string {
	if strings.Contains(prefix, "://") {
		return strings.TrimRight(prefix, "/")
	}
	return FileURL(resolve(baseDir, prefix))
}

// FileURL returns the file:// URL for a local path.
func FileURL(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String()
}

// JoinURL appends path elements to a staging URL.
func JoinURL(base string, elem ...string) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" {
		return path.Join(append([]string{base}, elem...)...)
	}
	u.Path = path.Join(append([]string{u.Path}, elem...)...)
	return u.String()
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
