package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	var remotePath, localPath string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Decrypt the secrets document to a local file",
		Long: `Download and decrypt the secrets document to a local file (mode 0600).

The file is left in place and the caller is responsible for deleting it. Use
exec to have the file removed automatically.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			ref, err := a.objectRef(remotePath)
			if err != nil {
				return err
			}
			path := localPath
			if path == "" {
				path = a.cfg.Secret.LocalSecretPath()
			}

			f, err := a.fetcherFor(ctx, ref.Region)
			if err != nil {
				return err
			}
			if err := f.FetchToFile(ctx, ref, path); err != nil {
				return err
			}

			a.logger.WarnContext(ctx, "plaintext secrets left on disk, remove when done", "path", path)
			_, err = fmt.Fprintln(a.stdout, path)
			return err
		},
	}

	cmd.Flags().StringVar(&remotePath, "remote-path", "", "Object key of the secrets document (default $S3ENCRYPT_S3_SECRET_PATH)")
	cmd.Flags().StringVar(&localPath, "path", "", "Absolute path of the plaintext file (default $S3ENCRYPT_LOCAL_SECRET_PATH or <cache dir>/secrets.json)")
	return cmd
}
