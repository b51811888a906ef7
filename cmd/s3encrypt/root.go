package main

import (
	"github.com/spf13/cobra"

	"s3encrypt/internal/types"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "s3encrypt",
		Short: "Fetch and decrypt KMS-encrypted secrets documents stored in S3",
		Long: `s3encrypt fetches a secrets document from S3, decrypts it with AWS KMS
using an encryption context, and either writes the plaintext to a local file or
reads it in memory.

Configuration is read from the environment (and an optional .env file):
AWS_REGION, S3ENCRYPT_S3_BUCKET, S3ENCRYPT_S3_SECRET_PATH,
S3ENCRYPT_ENCRYPTION_CONTEXT, S3ENCRYPT_LOCAL_SECRET_PATH, S3ENCRYPT_CACHE_DIR.
Any variable may instead be given as <NAME>_SSM_PARAM pointing to an SSM
parameter. Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.region, "region", "", "AWS region of the bucket and key (default $AWS_REGION or us-east-1)")
	pf.StringVar(&a.flags.bucket, "bucket", "", "S3 bucket holding the secrets document (default $S3ENCRYPT_S3_BUCKET)")
	pf.StringVar(&a.flags.context, "context", "", "KMS encryption context (default $S3ENCRYPT_ENCRYPTION_CONTEXT)")
	pf.StringVar(&a.flags.endpointURL, "endpoint-url", "", "Custom AWS endpoint, e.g. LocalStack (default $AWS_ENDPOINT_URL)")
	pf.StringSliceVar(&a.flags.envFiles, "env-file", nil, "Dotenv file(s) to load instead of ./.env")
	pf.BoolVar(&a.flags.paramsFromEnv, "params-from-env", false, "Resolve <NAME>_SSM_PARAM pointers from environment variables instead of SSM")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return types.NewAppError(types.ErrCodeValidationMissingField, err.Error(), err)
	})

	root.AddCommand(
		newDownloadCmd(a),
		newDecryptCmd(a),
		newExecCmd(a),
		newPutCmd(a),
		newApplyCmd(a),
		newVersionCmd(a),
	)
	return root
}
