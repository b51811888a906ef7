package config

import "context"

// SecretProvider resolves the values behind _SSM_PARAM pointer variables.
// SSMProvider reads AWS SSM Parameter Store; EnvVarProvider reads the
// process environment.
type SecretProvider interface {
	// GetParametersBatch returns a map of key -> plaintext value for every
	// key it could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
