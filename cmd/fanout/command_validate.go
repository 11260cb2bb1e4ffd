package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelworks/gaussian-workflow-demo/internal/config"
	"github.com/parallelworks/gaussian-workflow-demo/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config files...]",
	Short: "Validate executor config files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles(cmd.Context(), args)
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		if configFile == "" {
			return fmt.Errorf("no config file given; pass paths or --config")
		}
		paths = []string{configFile}
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Printf("□ Validating %s...\n", path)
		if err := validator.ValidateConfigFile(path); err != nil {
			return err
		}
		if _, err := config.Load(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("✓ %s is valid\n", path)
	}

	fmt.Println("✓ All validation passed")
	return nil
}
