package main

import (
	"github.com/spf13/cobra"

	"github.com/parallelworks/gaussian-workflow-demo/internal/normalize"
)

// form receives the workflow form's arguments verbatim.
var form normalize.FormArgs

// addFormFlags binds the launch form fields. The form may pass fields a
// command does not use, so unknown flags are ignored.
func addFormFlags(cmd *cobra.Command, withInputs bool) {
	f := cmd.Flags()
	f.StringVar(&form.JobNumber, "job_number", "", "Workflow job number")
	f.StringVar(&form.CPU, "cpu", "", "Cores per invocation")
	f.StringVar(&form.RAM, "ram", "", "Program memory in GB (empty or 0 for the whole node)")
	f.StringVar(&form.Partition, "partition", "", "Scheduler partition")
	f.StringVar(&form.Prefix, "prefix", "", "Results location (path or s3:// URL)")
	f.StringVar(&form.Outdir, "outdir", "", "Results location used when --prefix is empty")
	if withInputs {
		f.StringVar(&form.Inp, "inp", "", "Input files joined with ___ (globs allowed)")
		f.StringVar(&form.NumGPU, "num_gpu", "", "GPUs per invocation")
		f.StringVar(&form.ChkIfTrue, "chk_if_true", "", "Reuse <name>.chk checkpoints (True/False)")
	}
	cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
}

func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sweepParams, "params", "", "Sweep parameters: NAME;input;MIN:MAX:STEP|...")
	cmd.Flags().StringVar(&sweepFile, "sweep-file", "", "YAML sweep definition (alternative to --params)")
}
