// Package config defines the configuration structure for the s3encrypt tool.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	Command-line flags (Highest) -> OS Environment -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Flags are applied by the command layer after LoadConfig returns.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"s3encrypt/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// defaultSecretFileName is the file created under CacheDir when no explicit
// local path is configured.
const defaultSecretFileName = "secrets.json"

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	// LogFormat selects the slog handler. Empty means text for local, JSON otherwise.
	LogFormat string `envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json text"`
	// OperationTimeout bounds a whole command. Zero leaves only the SDK defaults.
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"0s" validate:"gte=0"`

	// Domain Configurations
	AWS     AWSConfig
	Secret  SecretConfig
	Breaker BreakerConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// AWSConfig holds AWS regional configuration and key identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1" validate:"required"`

	// KMSKeyID is only needed for uploads; downloads use the key recorded in
	// the ciphertext.
	KMSKeyID string `envconfig:"KMS_KEY_ID"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// SecretConfig describes the secrets object and where its plaintext may be
// written. Bucket and EncryptionContext may also be supplied by flags, so they
// are validated when the object reference is built rather than here.
type SecretConfig struct {
	Bucket            string       `envconfig:"S3ENCRYPT_S3_BUCKET"`
	RemotePath        string       `envconfig:"S3ENCRYPT_S3_SECRET_PATH" default:"secrets/secrets.json"`
	EncryptionContext SecretString `envconfig:"S3ENCRYPT_ENCRYPTION_CONTEXT"`
	// ContextKey is the key under which the encryption context string is bound
	// in the KMS encryption context map.
	ContextKey string `envconfig:"S3ENCRYPT_CONTEXT_KEY" default:"Application" validate:"required"`
	LocalPath  string `envconfig:"S3ENCRYPT_LOCAL_SECRET_PATH" validate:"omitempty,startswith=/"`
	CacheDir   string `envconfig:"S3ENCRYPT_CACHE_DIR" default:"/var/cache/s3encrypt" validate:"required,startswith=/"`
}

// BreakerConfig tunes the circuit breaker placed in front of the object store.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"3" validate:"gte=1"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s" validate:"gt=0"`
}

// LocalSecretPath returns the configured plaintext path, or
// CacheDir/secrets.json when none is set.
func (c SecretConfig) LocalSecretPath() string {
	if c.LocalPath != "" {
		return filepath.Clean(c.LocalPath)
	}
	return filepath.Join(c.CacheDir, defaultSecretFileName)
}

// ObjectRef builds the object reference described by the configuration. The
// result is not validated; callers apply flag overrides first and then call
// Validate on the reference.
func (c *Config) ObjectRef() types.EncryptedObjectRef {
	return types.EncryptedObjectRef{
		Bucket:            strings.TrimSpace(c.Secret.Bucket),
		RemotePath:        strings.TrimSpace(c.Secret.RemotePath),
		EncryptionContext: c.Secret.EncryptionContext.Unmask(),
		Region:            strings.TrimSpace(c.AWS.Region),
	}
}

// IsLocal reports whether the process runs in the local environment.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
