// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env files via godotenv (the default .env is optional).
//  2. If APP_ENV != "local", resolve _SSM_PARAM pointer variables via the
//     SecretProvider and inject the resolved values back into the environment.
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix is the environment variable suffix used to identify SSM
// parameter pointer variables. For example,
// S3ENCRYPT_ENCRYPTION_CONTEXT_SSM_PARAM points to the SSM path holding the
// encryption context.
const ssmParamSuffix = "_SSM_PARAM"

// ssmResolveTimeout bounds the provider call made while loading.
const ssmResolveTimeout = 30 * time.Second

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// envLookup is a function type for looking up environment variables.
// It matches the signature of os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet is a function type for setting environment variables.
// It matches the signature of os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// environ is a function type for listing all environment variables.
// It matches the signature of os.Environ and allows injection for testing.
type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
	// loadDotenv loads the given files, or ./.env when none are given.
	loadDotenv func(files ...string) error
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv:  os.LookupEnv,
		setEnv:     os.Setenv,
		environ:    os.Environ,
		loadDotenv: godotenv.Load,
	}
}

// LoadConfig loads and validates the configuration.
//
// It performs the following steps in order:
//  1. Loads envFiles, or a .env file in the working directory if present.
//  2. If APP_ENV != "local", scans the environment for _SSM_PARAM variables,
//     resolves them via the provider and injects the resolved values.
//  3. Processes envconfig tags to populate the Config struct.
//  4. Populates Config.Build from linker-injected variables.
//  5. Validates the Config struct.
//
// The provider may be nil when no _SSM_PARAM variables are present or when
// APP_ENV is "local".
func LoadConfig(provider SecretProvider, envFiles ...string) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps(), envFiles...)
}

// loadConfigWithDeps is the internal implementation of LoadConfig that accepts
// injectable dependencies for testing.
func loadConfigWithDeps(provider SecretProvider, deps loaderDeps, envFiles ...string) (*Config, error) {
	// Step 1: Load dotenv. The implicit .env is optional; explicitly
	// requested files must exist. godotenv does NOT override variables that
	// are already set.
	if len(envFiles) == 0 {
		_ = deps.loadDotenv()
	} else if err := deps.loadDotenv(envFiles...); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: fmt.Sprintf("failed to load env file(s) %s", strings.Join(envFiles, ", ")),
			Err:     err,
		}
	}

	// Determine the environment.
	appEnv, _ := deps.lookupEnv("APP_ENV")

	// Step 2: Scan for _SSM_PARAM variables and resolve if non-local.
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	// Step 3: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig will use the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	// envconfig always reads the process environment, so lookups injected
	// through deps only affect SSM resolution.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Populate build metadata from linker-injected variables.
	cfg.Build = NewBuildInfo()

	// Step 5: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// ssmPointer binds a target variable to the parameter path that holds its
// value.
type ssmPointer struct {
	target string
	path   string
}

// ssmPointers lists the <NAME>_SSM_PARAM variables whose target <NAME> is not
// already set, sorted by target. Empty paths are ignored.
func ssmPointers(deps loaderDeps) []ssmPointer {
	var pointers []ssmPointer
	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		pointers = append(pointers, ssmPointer{target: target, path: path})
	}
	sort.Slice(pointers, func(i, j int) bool { return pointers[i].target < pointers[j].target })
	return pointers
}

// resolveSSMParams resolves every pending _SSM_PARAM pointer in one provider
// call and exports the values under the target names, so that envconfig sees
// them like any other variable. For example
// S3ENCRYPT_ENCRYPTION_CONTEXT_SSM_PARAM=/prod/s3encrypt/context sets
// S3ENCRYPT_ENCRYPTION_CONTEXT to the value stored at /prod/s3encrypt/context.
//
// A target that is already set (directly or through a dotenv file) wins over
// its pointer.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pointers := ssmPointers(deps)
	if len(pointers) == 0 {
		return nil
	}

	targets := make([]string, 0, len(pointers))
	paths := make([]string, 0, len(pointers))
	for _, p := range pointers {
		targets = append(targets, p.target)
		paths = append(paths, p.path)
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range pointers {
		value, ok := resolved[p.path]
		if !ok {
			missing = append(missing, p.target)
			continue
		}
		if err := deps.setEnv(p.target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", p.target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
