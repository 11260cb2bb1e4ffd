package main

import (
	"github.com/spf13/cobra"

	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
)

const serviceName = "fanout"

var (
	configFile   string
	verbose      bool
	jsonOutput   bool
	waitPolicy   string
	executorKind string
	outputFile   string
	viewPlan     string
	debugMode    bool
	changedOnly  bool
	baseRef      string
	sweepParams  string
	sweepFile    string
	planFile     string
)

var rootCmd = &cobra.Command{
	Use:   "fanout",
	Short: "Parameterized batch fan-out launcher",
	Long: "fanout turns workflow form arguments into one batch invocation per input file " +
		"or sweep case, submits them to a local pool or a Slurm cluster, and waits for all of them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		observability.InitCLILogger(serviceName, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Executor config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit JSONL run events on stdout")
	rootCmd.PersistentFlags().StringVar(&waitPolicy, "wait-policy", "", "Barrier policy (collect-all/fail-fast)")
	rootCmd.PersistentFlags().StringVar(&executorKind, "executor", "", "Executor kind (local/slurm/dryrun)")

	registerRunCommand(rootCmd)
	registerSweepCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerSubmitCommand(rootCmd)
	registerValidateCommand(rootCmd)
}
