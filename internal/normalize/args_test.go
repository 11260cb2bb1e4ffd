package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

func TestJobParameters(t *testing.T) {
	t.Run("FormScenario", func(t *testing.T) {
		got, err := JobParameters(FormArgs{
			JobNumber: "00042",
			Inp:       "a.inp___b.inp",
			CPU:       "4",
			RAM:       "10",
			Partition: "batch",
			NumGPU:    "0",
			ChkIfTrue: "False",
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobParameters{
			JobNumber:     "00042",
			CPUCount:      4,
			RAMGB:         10,
			GPUCount:      0,
			Checkpoint:    false,
			Partition:     "batch",
			WorkingPrefix: DefaultPrefix,
		}, got)
	})

	t.Run("DefaultsForOptionalFields", func(t *testing.T) {
		got, err := JobParameters(FormArgs{JobNumber: "1", Inp: "x.gjf", CPU: "2"})
		require.NoError(t, err)
		assert.Equal(t, 0, got.RAMGB)
		assert.Equal(t, 0, got.GPUCount)
		assert.False(t, got.Checkpoint)
	})

	t.Run("OutdirFallback", func(t *testing.T) {
		got, err := JobParameters(FormArgs{JobNumber: "1", Inp: "x.gjf", CPU: "2", Outdir: "out"})
		require.NoError(t, err)
		assert.Equal(t, "out", got.WorkingPrefix)

		got, err = JobParameters(FormArgs{JobNumber: "1", Inp: "x.gjf", CPU: "2", Prefix: "pre", Outdir: "out"})
		require.NoError(t, err)
		assert.Equal(t, "pre", got.WorkingPrefix)
	})

	t.Run("CheckpointTrue", func(t *testing.T) {
		got, err := JobParameters(FormArgs{JobNumber: "1", Inp: "x.gjf", CPU: "2", ChkIfTrue: "True"})
		require.NoError(t, err)
		assert.True(t, got.Checkpoint)
	})
}

func TestJobParametersErrors(t *testing.T) {
	base := FormArgs{JobNumber: "1", Inp: "a.inp", CPU: "4"}

	tests := []struct {
		name   string
		mutate func(*FormArgs)
		field  string
	}{
		{name: "missing job number", mutate: func(a *FormArgs) { a.JobNumber = "" }, field: "job_number"},
		{name: "missing inputs", mutate: func(a *FormArgs) { a.Inp = "___" }, field: "inp"},
		{name: "missing cpu", mutate: func(a *FormArgs) { a.CPU = " " }, field: "cpu"},
		{name: "non-integer cpu", mutate: func(a *FormArgs) { a.CPU = "four" }, field: "cpu"},
		{name: "hex cpu rejected", mutate: func(a *FormArgs) { a.CPU = "0x10" }, field: "cpu"},
		{name: "zero cpu", mutate: func(a *FormArgs) { a.CPU = "0" }, field: "cpu"},
		{name: "negative ram", mutate: func(a *FormArgs) { a.RAM = "-1" }, field: "ram"},
		{name: "fractional ram", mutate: func(a *FormArgs) { a.RAM = "1.5" }, field: "ram"},
		{name: "bad gpu", mutate: func(a *FormArgs) { a.NumGPU = "two" }, field: "num_gpu"},
		{name: "huge ram", mutate: func(a *FormArgs) { a.RAM = "9223372036854775800" }, field: "ram"},
		{name: "ram above limit", mutate: func(a *FormArgs) { a.RAM = "1048577" }, field: "ram"},
		{name: "cpu above limit", mutate: func(a *FormArgs) { a.CPU = "4097" }, field: "cpu"},
		{name: "gpu above limit", mutate: func(a *FormArgs) { a.NumGPU = "257" }, field: "num_gpu"},
		{name: "bad checkpoint flag", mutate: func(a *FormArgs) { a.ChkIfTrue = "yes" }, field: "chk_if_true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := base
			tt.mutate(&args)
			_, err := JobParameters(args)
			require.Error(t, err)

			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Equal(t, tt.field, argErr.Field)
		})
	}
}

func TestSplitInputs(t *testing.T) {
	assert.Equal(t, []string{"a.inp", "b.inp"}, SplitInputs("a.inp___b.inp"))
	assert.Equal(t, []string{"a.inp"}, SplitInputs(" a.inp ___"))
	assert.Empty(t, SplitInputs(""))
}

func TestParseFormBool(t *testing.T) {
	for _, v := range []string{"True", "true", "TRUE"} {
		got, err := ParseFormBool("f", v)
		require.NoError(t, err)
		assert.True(t, got, v)
	}
	for _, v := range []string{"False", "false", ""} {
		got, err := ParseFormBool("f", v)
		require.NoError(t, err)
		assert.False(t, got, v)
	}
}

func TestSweepParameters(t *testing.T) {
	p, err := SweepParameters(FormArgs{JobNumber: "9", CPU: "2", RAM: "4"})
	require.NoError(t, err)
	assert.Equal(t, "9", p.JobNumber)
	assert.Equal(t, 2, p.CPUCount)
	assert.Equal(t, DefaultPrefix, p.WorkingPrefix)

	_, err = JobParameters(FormArgs{JobNumber: "9", CPU: "2"})
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "inp", argErr.Field)
}
