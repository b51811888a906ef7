package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVarProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*EnvVarProvider)(nil)
	var _ SecretProvider = NewEnvVarProvider()
}

// TestEnvVarProviderResolvesSetVariables verifies set keys are returned and
// missing keys are omitted rather than reported as errors.
func TestEnvVarProviderResolvesSetVariables(t *testing.T) {
	env := map[string]string{
		"LOCAL_CONTEXT": "calvin_and_hobbes",
		"LOCAL_EMPTY":   "",
	}
	provider := &EnvVarProvider{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	result, err := provider.GetParametersBatch(context.Background(), []string{"LOCAL_CONTEXT", "LOCAL_EMPTY", "LOCAL_MISSING"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LOCAL_CONTEXT": "calvin_and_hobbes", "LOCAL_EMPTY": ""}, result)
}

func TestEnvVarProviderUsesProcessEnvironment(t *testing.T) {
	t.Setenv("S3ENCRYPT_TEST_PROVIDER_VALUE", "from-env")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{"S3ENCRYPT_TEST_PROVIDER_VALUE"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", result["S3ENCRYPT_TEST_PROVIDER_VALUE"])
}

func TestEnvVarProviderNilKeys(t *testing.T) {
	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}
