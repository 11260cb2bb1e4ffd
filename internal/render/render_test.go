package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

func samplePlan() *model.Plan {
	return &model.Plan{
		APIVersion: "fanout.parallel.works/v1",
		Kind:       "Plan",
		Metadata:   model.Metadata{Name: "9", Description: "md sweep"},
		Invocations: []model.Invocation{
			{
				ID: "md-0", Index: 0, Stage: "md",
				Item:      model.WorkItem{Index: 0, Case: "npart=25"},
				OutputDir: "/runs/9/case_0/md",
				Program:   model.Command{Args: []string{"runMD.sh", "npart=25"}},
				Resources: model.ResourceRequest{CoresPerNode: 2, MemPerNodeGB: 12},
				Outputs:   []model.StagedFile{{URL: "file:///r/case_0/md", LocalPath: "/runs/9/case_0/md"}},
			},
			{
				ID: "render-0", Index: 0, Stage: "render",
				Item:      model.WorkItem{Index: 0, Case: "npart=25"},
				OutputDir: "/runs/9/case_0/render",
				Program:   model.Command{Args: []string{"renderframe.sh"}},
				DependsOn: []string{"md-0"},
			},
			{
				ID: "md-1", Index: 1, Stage: "md",
				Item:      model.WorkItem{Index: 1, Case: "npart=50"},
				OutputDir: "/runs/9/case_1/md",
				Program:   model.Command{Args: []string{"runMD.sh", "npart=50"}},
			},
		},
	}
}

func TestWritePlan(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer()

	jsonPath := filepath.Join(dir, "out", "plan.json")
	require.NoError(t, r.WritePlan(samplePlan(), jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON model.Plan
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Len(t, fromJSON.Invocations, 3)
	assert.Equal(t, []string{"md-0"}, fromJSON.Invocations[1].DependsOn)

	yamlPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, r.WritePlan(samplePlan(), yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML model.Plan
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "md sweep", fromYAML.Metadata.Description)
}

func TestViewTable(t *testing.T) {
	out := NewPlanViewer(samplePlan()).ViewTable()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "md-0")
	assert.Contains(t, lines[1], "12G")
	assert.Contains(t, lines[3], "node")
}

func TestViewDAG(t *testing.T) {
	out := NewPlanViewer(samplePlan()).ViewDAG()
	assert.Contains(t, out, "├─ case_0 [npart=25]")
	assert.Contains(t, out, "└─ case_1 [npart=50]")
	assert.Contains(t, out, "(depends on) md-0")
	assert.Contains(t, out, "Summary: 2 work items, 3 invocations")
}

func TestViewByStage(t *testing.T) {
	v := NewPlanViewer(samplePlan())
	out := v.ViewByStage("md")
	assert.Contains(t, out, "md (2 invocations)")
	assert.Contains(t, out, "Out: /runs/9/case_0/md → file:///r/case_0/md")
	assert.Equal(t, "No invocations found for stage: nope", v.ViewByStage("nope"))
}

func TestEmptyPlan(t *testing.T) {
	v := NewPlanViewer(&model.Plan{})
	assert.Equal(t, "No invocations in plan", v.ViewTable())
	assert.Equal(t, "No invocations in plan", v.ViewDAG())
}

func TestDebugDump(t *testing.T) {
	out := NewRenderer().DebugDump(samplePlan())
	assert.Contains(t, out, "Invocations: 3")
	assert.Contains(t, out, "Program: runMD.sh npart=25")
}
