package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"s3encrypt/internal/config"
	"s3encrypt/internal/fetcher"
	"s3encrypt/internal/kmscrypt"
	"s3encrypt/internal/storage"
	"s3encrypt/internal/types"
)

// secretFileEnv names the variable through which a child process receives the
// plaintext file path.
const (
	secretFileEnv  = "S3ENCRYPT_SECRET_FILE"
	secretFilesEnv = "S3ENCRYPT_SECRET_FILES"
)

// backend holds the regional remote services.
type backend struct {
	Store  storage.ObjectStore
	Cipher kmscrypt.Cipher
}

// backendFactory builds the services for one region.
type backendFactory func(ctx context.Context, cfg *config.Config, region string, logger *slog.Logger) (*backend, error)

// commandRunner runs a child process with extra environment variables and
// returns its error.
type commandRunner func(ctx context.Context, argv []string, env []string, stdout, stderr io.Writer) error

// app is the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs

	loadConfig func(provider config.SecretProvider, envFiles ...string) (*config.Config, error)
	newBackend backendFactory
	runCommand commandRunner

	flags globalFlags

	// Populated by the root command before any subcommand runs.
	cfg    *config.Config
	logger *slog.Logger
	runID  string
}

// globalFlags override configuration for every command.
type globalFlags struct {
	region      string
	bucket      string
	context     string
	endpointURL string
	envFiles    []string
	logLevel    string

	// paramsFromEnv resolves _SSM_PARAM pointers from environment variables.
	paramsFromEnv bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		fs:         afero.NewOsFs(),
		loadConfig: config.LoadConfig,
		newBackend: newAWSBackend,
		runCommand: runCommand,
	}
}

// setup loads configuration, applies flag overrides and creates the logger.
func (a *app) setup() error {
	region := firstNonEmpty(a.flags.region, os.Getenv("AWS_REGION"), "us-east-1")
	endpoint := firstNonEmpty(a.flags.endpointURL, os.Getenv("AWS_ENDPOINT_URL"))

	var provider config.SecretProvider = config.NewSSMProvider(region, endpoint)
	if a.flags.paramsFromEnv {
		provider = config.NewEnvVarProvider()
	}

	cfg, err := a.loadConfig(provider, a.flags.envFiles...)
	if err != nil {
		return err
	}

	if a.flags.region != "" {
		cfg.AWS.Region = a.flags.region
	}
	if a.flags.endpointURL != "" {
		cfg.AWS.EndpointURL = a.flags.endpointURL
	}
	if a.flags.bucket != "" {
		cfg.Secret.Bucket = a.flags.bucket
	}
	if a.flags.context != "" {
		cfg.Secret.EncryptionContext = types.SecretString(a.flags.context)
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}

	a.cfg = cfg
	a.runID = uuid.NewString()
	a.logger = newLogger(cfg, a.stderr).With("run_id", a.runID)
	a.logger.Debug("s3encrypt starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"region", cfg.AWS.Region,
	)
	return nil
}

// commandContext derives the context of one command: it carries the run id
// and logger and is bounded by OPERATION_TIMEOUT when set.
func (a *app) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := types.WithRunID(parent, a.runID)
	ctx = types.WithLogger(ctx, a.logger)
	if a.cfg.OperationTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

// fetcherFor builds a SecretFetcher bound to region.
func (a *app) fetcherFor(ctx context.Context, region string) (*fetcher.SecretFetcher, error) {
	b, err := a.newBackend(ctx, a.cfg, region, a.logger)
	if err != nil {
		return nil, err
	}
	return fetcher.NewSecretFetcher(b.Store, b.Cipher, a.fs, a.logger), nil
}

// objectRef builds the reference for remotePath from the configuration and
// validates it.
func (a *app) objectRef(remotePath string) (types.EncryptedObjectRef, error) {
	ref := a.cfg.ObjectRef()
	if remotePath != "" {
		ref.RemotePath = strings.TrimSpace(remotePath)
	}
	if err := ref.Validate(); err != nil {
		return types.EncryptedObjectRef{}, err
	}
	return ref, nil
}

// childExitError carries the exit status of a failed child process.
type childExitError struct {
	code int
	err  error
}

func (e *childExitError) Error() string {
	return "command failed: " + e.err.Error()
}

func (e *childExitError) Unwrap() error {
	return e.err
}

// runCommand runs argv with the current environment plus env.
func runCommand(ctx context.Context, argv []string, env []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return &childExitError{code: exitErr.ExitCode(), err: err}
		}
		return types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
			"running "+argv[0], err, map[string]any{"command": argv[0]})
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
