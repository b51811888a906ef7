package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"s3encrypt/internal/config"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  noArgs,
		// Skip configuration loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(a.stdout, "s3encrypt %s\n", config.NewBuildInfo())
			return err
		},
	}
}
