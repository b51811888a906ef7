package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"s3encrypt/internal/fetcher"
	"s3encrypt/internal/types"
)

const defaultContentType = "application/octet-stream"

func newPutCmd(a *app) *cobra.Command {
	var remotePath, file, keyID string
	var raw bool

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Encrypt a local secrets document with KMS and upload it",
		Long: `Encrypt a local secrets document with KMS under the encryption context and
upload the ciphertext to S3.

The document must be a flat JSON object, as decrypt expects, unless --raw is
given. KMS encrypts at most 4096 bytes directly.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			if file == "" {
				return requiredFlag(cmd, "file")
			}
			if keyID != "" {
				a.cfg.AWS.KMSKeyID = keyID
			}
			ref, err := a.objectRef(remotePath)
			if err != nil {
				return err
			}

			plaintext, err := afero.ReadFile(a.fs, file)
			if err != nil {
				return types.NewAppErrorWithDetails(types.ErrCodeIORead, "reading "+file, err, map[string]any{"path": file})
			}
			defer types.Wipe(plaintext)

			if !raw {
				secrets, err := fetcher.ParseDocument(plaintext)
				if err != nil {
					return err
				}
				a.logger.DebugContext(ctx, "document validated", "secrets", secrets)
			}

			b, err := a.newBackend(ctx, a.cfg, ref.Region, a.logger)
			if err != nil {
				return err
			}
			ciphertext, err := b.Cipher.Encrypt(ctx, plaintext, ref.EncryptionContext)
			if err != nil {
				return err
			}
			if err := b.Store.PutObject(ctx, ref.Bucket, ref.RemotePath, ciphertext, defaultContentType); err != nil {
				return err
			}

			a.logger.InfoContext(ctx, "secrets document uploaded",
				"object", ref.String(),
				"ciphertext_bytes", len(ciphertext),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&remotePath, "remote-path", "", "Object key to upload to (default $S3ENCRYPT_S3_SECRET_PATH)")
	cmd.Flags().StringVar(&file, "file", "", "Local plaintext document (required)")
	cmd.Flags().StringVar(&keyID, "kms-key-id", "", "KMS key id, ARN or alias (default $KMS_KEY_ID)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Upload the document without checking that it is a flat JSON object")
	return cmd
}
