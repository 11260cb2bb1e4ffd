package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// Renderer serializes plans
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON renders plan as JSON
func (r *Renderer) RenderJSON(plan *model.Plan) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}

// RenderYAML renders plan as YAML
func (r *Renderer) RenderYAML(plan *model.Plan) ([]byte, error) {
	return yaml.Marshal(plan)
}

// WritePlan writes plan to file (JSON or YAML based on extension)
func (r *Renderer) WritePlan(plan *model.Plan, path string) error {
	var data []byte
	var err error

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(plan)
	default:
		data, err = r.RenderJSON(plan)
	}
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan to %s: %w", path, err)
	}

	return nil
}

// DebugDump outputs debug information about the plan
func (r *Renderer) DebugDump(plan *model.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s (%s)\n", plan.Metadata.Name, plan.Metadata.Description)
	fmt.Fprintf(&sb, "Invocations: %d\n\n", len(plan.Invocations))

	for _, inv := range plan.Invocations {
		fmt.Fprintf(&sb, "Invocation: %s\n", inv.ID)
		fmt.Fprintf(&sb, "  Stage: %s\n", inv.Stage)
		fmt.Fprintf(&sb, "  Item: %s\n", itemLabel(inv.Item))
		fmt.Fprintf(&sb, "  Program: %s\n", strings.Join(inv.Program.Args, " "))
		fmt.Fprintf(&sb, "  OutputDir: %s\n", inv.OutputDir)
		fmt.Fprintf(&sb, "  DependsOn: %v\n", inv.DependsOn)
		sb.WriteString("\n")
	}

	return sb.String()
}

func itemLabel(item model.WorkItem) string {
	if item.Path != "" {
		return item.Path
	}
	return item.Case
}
