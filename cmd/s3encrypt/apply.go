package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"s3encrypt/internal/manifest"
)

func newApplyCmd(a *app) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "apply --manifest FILE [-- command [args...]]",
		Short: "Fetch every secrets document listed in a manifest",
		Long: `Process the resources of a YAML manifest in order. download resources are
written to their path, decrypt resources are read in memory.

When a command is given it runs after all resources succeeded, with
S3ENCRYPT_SECRET_FILES set to the downloaded paths (separated like PATH) and
S3ENCRYPT_SECRET_FILE set when there is exactly one. Downloaded files are
always deleted before apply returns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			if manifestPath == "" {
				return requiredFlag(cmd, "manifest")
			}
			m, err := manifest.Load(a.fs, manifestPath)
			if err != nil {
				return err
			}

			factory := func(ctx context.Context, region string) (manifest.Fetcher, error) {
				f, err := a.fetcherFor(ctx, region)
				if err != nil {
					return nil, err
				}
				return f, nil
			}

			var consume func([]manifest.Outcome) error
			if len(args) > 0 {
				consume = func(outcomes []manifest.Outcome) error {
					return a.runCommand(ctx, args, outcomeEnv(outcomes), a.stdout, a.stderr)
				}
			}

			outcomes, err := manifest.Apply(ctx, m, factory, consume, a.logger)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return nil
			}
			for _, o := range outcomes {
				detail := o.Path
				if o.Action == manifest.ActionDecrypt {
					detail = strings.Join(o.Secrets.Keys(), ",")
				}
				if _, err := fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n", o.Name, o.Action, o.Object, detail); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path of the YAML manifest (required)")
	return cmd
}

func outcomeEnv(outcomes []manifest.Outcome) []string {
	var paths []string
	for _, o := range outcomes {
		if o.Path != "" {
			paths = append(paths, o.Path)
		}
	}
	env := []string{secretFilesEnv + "=" + strings.Join(paths, string(os.PathListSeparator))}
	if len(paths) == 1 {
		env = append(env, secretFileEnv+"="+paths[0])
	}
	return env
}
