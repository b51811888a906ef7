package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"s3encrypt/internal/types"
)

// noArgs and minArgs report argument errors as validation failures.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s takes no arguments, got %q", cmd.CommandPath(), args), nil)
	}
	return nil
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return types.NewAppError(types.ErrCodeValidationMissingField,
				fmt.Sprintf("%s requires a command to run", cmd.CommandPath()), nil)
		}
		return nil
	}
}

func requiredFlag(cmd *cobra.Command, name string) error {
	return types.NewAppError(types.ErrCodeValidationMissingField,
		fmt.Sprintf("%s requires --%s", cmd.CommandPath(), name), nil)
}
