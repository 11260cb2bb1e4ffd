package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelworks/gaussian-workflow-demo/internal/loader"
	"github.com/parallelworks/gaussian-workflow-demo/internal/output"
	"github.com/parallelworks/gaussian-workflow-demo/internal/planner"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a saved plan",
	Long:  "Launch the invocations of a plan written by the plan command, similar to an apply phase.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitPlan(cmd.Context())
	},
}

func registerSubmitCommand(root *cobra.Command) {
	root.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&planFile, "plan", "p", "plan.json", "Path to plan file (json or yaml)")
}

func submitPlan(ctx context.Context) error {
	progress("□ Loading plan %s...", planFile)
	plan, err := loader.LoadPlan(planFile)
	if err != nil {
		return err
	}

	// Saved plans may be edited by hand; re-check ids, output dirs and order.
	checked, err := planner.BuildPlan(plan.Invocations)
	if err != nil {
		return fmt.Errorf("invalid plan %s: %w", planFile, err)
	}
	plan.Invocations = checked.Invocations
	if plan.Metadata.RunID == "" {
		plan.Metadata.RunID = output.NewRunID()
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return launchPlan(ctx, cfg, plan)
}
