package main

import (
	"context"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chemistry program once per input file",
	Long: "Normalize the workflow form, build one invocation per input file and submit " +
		"them all to the configured executor, then wait for every invocation to finish.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGaussian(cmd.Context())
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	addFormFlags(runCmd, true)
	runCmd.Flags().BoolVar(&changedOnly, "changed", false, "Run only inputs changed since --base (requires git)")
	runCmd.Flags().StringVar(&baseRef, "base", "main", "Base ref for change detection")
}

func runGaussian(ctx context.Context) error {
	plan, cfg, err := buildGaussianPlan(ctx)
	if err != nil {
		return err
	}
	progress("✓ Planned %d invocations", len(plan.Invocations))
	return launchPlan(ctx, cfg, plan)
}
