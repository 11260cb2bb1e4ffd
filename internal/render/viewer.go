package render

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════\n"

// PlanViewer provides human-readable visualization of a plan
type PlanViewer struct {
	plan *model.Plan
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(plan *model.Plan) *PlanViewer {
	return &PlanViewer{plan: plan}
}

// ViewTable returns one row per invocation in submission order
func (pv *PlanViewer) ViewTable() string {
	if len(pv.plan.Invocations) == 0 {
		return "No invocations in plan"
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tITEM\tCPU\tMEM\tGPU\tOUTPUT")
	for _, inv := range pv.plan.Invocations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			inv.ID,
			inv.Stage,
			itemLabel(inv.Item),
			inv.Resources.CoresPerNode,
			memLabel(inv.Resources.MemPerNodeGB),
			inv.Resources.GPUsPerNode,
			inv.OutputDir,
		)
	}
	tw.Flush()
	return sb.String()
}

// ViewDAG returns a tree view: work items, then their invocations and dependencies
func (pv *PlanViewer) ViewDAG() string {
	if len(pv.plan.Invocations) == 0 {
		return "No invocations in plan"
	}

	byItem := make(map[int][]*model.Invocation)
	for i := range pv.plan.Invocations {
		inv := &pv.plan.Invocations[i]
		byItem[inv.Index] = append(byItem[inv.Index], inv)
	}
	indexes := make([]int, 0, len(byItem))
	for idx := range byItem {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var sb strings.Builder
	for i, idx := range indexes {
		isLastItem := i == len(indexes)-1
		invs := byItem[idx]

		itemPrefix, itemConnector := "├─ ", "│  "
		if isLastItem {
			itemPrefix, itemConnector = "└─ ", "   "
		}
		fmt.Fprintf(&sb, "%scase_%d [%s]\n", itemPrefix, idx, itemLabel(invs[0].Item))

		for j, inv := range invs {
			isLastInv := j == len(invs)-1
			invPrefix, invConnector := itemConnector+"├─ ", itemConnector+"│  "
			if isLastInv {
				invPrefix, invConnector = itemConnector+"└─ ", itemConnector+"   "
			}
			fmt.Fprintf(&sb, "%s%s (%s)\n", invPrefix, inv.ID, inv.Stage)

			lines := make([]string, 0, len(inv.DependsOn)+1)
			deps := append([]string(nil), inv.DependsOn...)
			sort.Strings(deps)
			for _, dep := range deps {
				lines = append(lines, "(depends on) "+dep)
			}
			lines = append(lines, truncate(strings.Join(inv.Program.Args, " "), 60))
			for k, line := range lines {
				prefix := invConnector + "├─ "
				if k == len(lines)-1 {
					prefix = invConnector + "└─ "
				}
				sb.WriteString(prefix + line + "\n")
			}
		}
	}

	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Summary: %d work items, %d invocations\n", len(indexes), len(pv.plan.Invocations))
	return sb.String()
}

// ViewByStage shows every invocation of one stage with its staging and resources
func (pv *PlanViewer) ViewByStage(stage string) string {
	var matching []*model.Invocation
	for i := range pv.plan.Invocations {
		if pv.plan.Invocations[i].Stage == stage {
			matching = append(matching, &pv.plan.Invocations[i])
		}
	}
	if len(matching) == 0 {
		return fmt.Sprintf("No invocations found for stage: %s", stage)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d invocations)\n", stage, len(matching))
	sb.WriteString(rule + "\n")

	for i, inv := range matching {
		prefix, connector := "├─ ", "│  "
		if i == len(matching)-1 {
			prefix, connector = "└─ ", "   "
		}
		fmt.Fprintf(&sb, "%s%s\n", prefix, inv.ID)
		fmt.Fprintf(&sb, "%s  Resources: cpu=%d mem=%s gpu=%d\n", connector,
			inv.Resources.CoresPerNode, memLabel(inv.Resources.MemPerNodeGB), inv.Resources.GPUsPerNode)
		for _, f := range inv.Inputs {
			fmt.Fprintf(&sb, "%s  In:  %s → %s\n", connector, f.URL, f.LocalPath)
		}
		for _, f := range inv.Outputs {
			fmt.Fprintf(&sb, "%s  Out: %s → %s\n", connector, f.LocalPath, f.URL)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func memLabel(gb int) string {
	if gb <= 0 {
		return "node"
	}
	return fmt.Sprintf("%dG", gb)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
