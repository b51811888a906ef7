// Package main is the s3encrypt command-line tool.
//
// It downloads an encrypted secrets document from S3, decrypts it with KMS
// and either writes it to a local file, prints selected values, or hands the
// file to a child process and removes it afterwards.
//
// Usage:
//
//	s3encrypt download --bucket secrets-bucket --context ctx1 --path /var/cache/s3encrypt/secrets.json
//	s3encrypt decrypt --bucket secrets-bucket --context ctx1 --property user1
//	s3encrypt exec --bucket secrets-bucket --context ctx1 -- ./deploy.sh
//	s3encrypt put --bucket secrets-bucket --context ctx1 --file secrets.json --kms-key-id alias/secrets
//	s3encrypt apply --manifest /etc/s3encrypt/manifest.yaml -- ./deploy.sh
//
// Exit status: 0 success, 2 invalid input or configuration, 3 object store
// failure, 4 decryption failure, 5 malformed document, 6 local file failure,
// 1 anything else. exec and apply propagate a failing child's exit status.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"s3encrypt/internal/config"
	"s3encrypt/internal/types"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, newApp(stdout, stderr), args)
}

func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "s3encrypt: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps an error to a process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var childErr *childExitError
	if errors.As(err, &childErr) {
		return childErr.code
	}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Type {
		case config.ErrValidation, config.ErrMissingEnv, config.ErrParsing:
			return types.KindValidation.ExitCode()
		default:
			return 1
		}
	}

	return types.KindOf(err).ExitCode()
}
