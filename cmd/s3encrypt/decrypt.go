package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDecryptCmd(a *app) *cobra.Command {
	var remotePath, property string

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt the secrets document in memory",
		Long: `Decrypt the secrets document in memory without touching the filesystem.

Without --property the key names are printed, one per line. With --property
the value of that key is printed.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			ref, err := a.objectRef(remotePath)
			if err != nil {
				return err
			}
			f, err := a.fetcherFor(ctx, ref.Region)
			if err != nil {
				return err
			}

			if property != "" {
				value, err := f.FetchValue(ctx, ref, property)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.stdout, value.Unmask())
				return err
			}

			secrets, err := f.FetchAsStructured(ctx, ref)
			if err != nil {
				return err
			}
			keys := secrets.Keys()
			if len(keys) == 0 {
				return nil
			}
			_, err = fmt.Fprintln(a.stdout, strings.Join(keys, "\n"))
			return err
		},
	}

	cmd.Flags().StringVar(&remotePath, "remote-path", "", "Object key of the secrets document (default $S3ENCRYPT_S3_SECRET_PATH)")
	cmd.Flags().StringVar(&property, "property", "", "Print the value of this key")
	return cmd
}
