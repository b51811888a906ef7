package main

import (
	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	var remotePath, localPath string

	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run a command with the decrypted secrets file, then remove it",
		Long: `Decrypt the secrets document to a local file, run the command with
S3ENCRYPT_SECRET_FILE set to its path, and delete the file afterwards.

The file is deleted even when the command fails. Failing to delete it fails
exec even when the command succeeded.`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return f.WithFile(ctx, ref, path, func(path string) error {
				a.logger.InfoContext(ctx, "running command", "command", args[0], "path", path)
				return a.runCommand(ctx, args, []string{secretFileEnv + "=" + path}, a.stdout, a.stderr)
			})
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&remotePath, "remote-path", "", "Object key of the secrets document (default $S3ENCRYPT_S3_SECRET_PATH)")
	cmd.Flags().StringVar(&localPath, "path", "", "Absolute path of the plaintext file (default $S3ENCRYPT_LOCAL_SECRET_PATH or <cache dir>/secrets.json)")
	return cmd
}
