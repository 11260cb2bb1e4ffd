package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
	"github.com/parallelworks/gaussian-workflow-demo/internal/planner"
	"github.com/parallelworks/gaussian-workflow-demo/internal/render"
)

var pipeline string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate an execution plan without submitting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan(cmd.Context())
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	addFormFlags(planCmd, true)
	addSweepFlags(planCmd)
	planCmd.Flags().StringVar(&pipeline, "pipeline", planner.StageGaussian, "Pipeline to plan (g16/md)")
	planCmd.Flags().StringVarP(&outputFile, "output", "o", "plan.json", "Output plan file path (.json/.yaml)")
	planCmd.Flags().StringVar(&viewPlan, "view", "", "View plan (table/dag/stage=NAME)")
	planCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug output")
	planCmd.Flags().BoolVar(&changedOnly, "changed", false, "Plan only inputs changed since --base (requires git)")
	planCmd.Flags().StringVar(&baseRef, "base", "main", "Base ref for change detection")
}

func generatePlan(ctx context.Context) error {
	var (
		plan *model.Plan
		err  error
	)
	switch pipeline {
	case planner.StageGaussian:
		plan, _, err = buildGaussianPlan(ctx)
	case planner.StageSimulate:
		plan, _, err = buildSweepPlan(ctx)
	default:
		return fmt.Errorf("unknown pipeline %q", pipeline)
	}
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}

	renderer := render.NewRenderer()
	if debugMode {
		fmt.Println("\n" + renderer.DebugDump(plan))
	}

	progress("□ Rendering plan...")
	if err := renderer.WritePlan(plan, outputFile); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	progress("✓ Plan generated with %d invocations", len(plan.Invocations))
	progress("✓ Saved to: %s", outputFile)

	if viewPlan != "" {
		viewer := render.NewPlanViewer(plan)
		var out string
		switch {
		case viewPlan == "table":
			out = viewer.ViewTable()
		case strings.HasPrefix(viewPlan, "stage="):
			out = viewer.ViewByStage(strings.TrimPrefix(viewPlan, "stage="))
		default:
			out = viewer.ViewDAG()
		}
		fmt.Println("\n" + out)
	}
	return nil
}
