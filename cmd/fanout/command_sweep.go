package main

import (
	"context"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a molecular-dynamics parameter sweep",
	Long: "Expand the sweep into cases, then simulate and render each case. " +
		"A case renders only after its own simulation succeeds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context())
	},
}

func registerSweepCommand(root *cobra.Command) {
	root.AddCommand(sweepCmd)

	addFormFlags(sweepCmd, false)
	addSweepFlags(sweepCmd)
}

func runSweep(ctx context.Context) error {
	plan, cfg, err := buildSweepPlan(ctx)
	if err != nil {
		return err
	}
	progress("✓ Planned %d invocations", len(plan.Invocations))
	return launchPlan(ctx, cfg, plan)
}
