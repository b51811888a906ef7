package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSSMClient is a testify mock for the ssmClient interface.
type mockSSMClient struct {
	mock.Mock
}

func (m *mockSSMClient) GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ssm.GetParametersOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func ssmParams(values map[string]string) []ssmtypes.Parameter {
	params := make([]ssmtypes.Parameter, 0, len(values))
	for name, value := range values {
		params = append(params, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(value)})
	}
	return params
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
	var _ SecretProvider = NewSSMProvider("us-east-1", "")
}

func TestSSMProviderEmptyKeysSkipsClient(t *testing.T) {
	client := &mockSSMClient{}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
	client.AssertNotCalled(t, "GetParameters", mock.Anything, mock.Anything)
}

func TestSSMProviderResolvesWithDecryption(t *testing.T) {
	client := &mockSSMClient{}
	client.On("GetParameters", mock.Anything, mock.MatchedBy(func(in *ssm.GetParametersInput) bool {
		return aws.ToBool(in.WithDecryption) && len(in.Names) == 2
	})).Return(&ssm.GetParametersOutput{
		Parameters: ssmParams(map[string]string{
			"/prod/s3encrypt/bucket":  "secrets-bucket",
			"/prod/s3encrypt/context": "ctx1",
		}),
	}, nil).Once()

	provider := newSSMProviderWithClient("us-east-1", client)
	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/s3encrypt/bucket", "/prod/s3encrypt/context"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/prod/s3encrypt/bucket":  "secrets-bucket",
		"/prod/s3encrypt/context": "ctx1",
	}, result)
	client.AssertExpectations(t)
}

// TestSSMProviderBatchesOfTen verifies the SSM API limit is respected.
func TestSSMProviderBatchesOfTen(t *testing.T) {
	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/prod/s3encrypt/p%02d", i)
	}

	var batchSizes []int
	client := &mockSSMClient{}
	client.On("GetParameters", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			batchSizes = append(batchSizes, len(args.Get(1).(*ssm.GetParametersInput).Names))
		}).
		Return(&ssm.GetParametersOutput{}, nil)

	provider := newSSMProviderWithClient("us-east-1", client)
	_, err := provider.GetParametersBatch(context.Background(), keys)

	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 3}, batchSizes)
}

func TestSSMProviderInvalidParameters(t *testing.T) {
	client := &mockSSMClient{}
	client.On("GetParameters", mock.Anything, mock.Anything).Return(&ssm.GetParametersOutput{
		InvalidParameters: []string{"/prod/s3encrypt/missing"},
	}, nil)

	provider := newSSMProviderWithClient("us-east-1", client)
	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/s3encrypt/missing"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "/prod/s3encrypt/missing")
}

func TestSSMProviderClientError(t *testing.T) {
	apiErr := errors.New("AccessDeniedException")
	client := &mockSSMClient{}
	client.On("GetParameters", mock.Anything, mock.Anything).Return(nil, apiErr)

	provider := newSSMProviderWithClient("eu-west-1", client)
	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/s3encrypt/context"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "eu-west-1")
}

func TestSSMProviderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockSSMClient{}
	provider := newSSMProviderWithClient("us-east-1", client)
	_, err := provider.GetParametersBatch(ctx, []string{"/prod/s3encrypt/context"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "GetParameters", mock.Anything, mock.Anything)
}

func TestNewSSMProviderStoresSettings(t *testing.T) {
	provider := NewSSMProvider("eu-west-1", "http://localhost:4566")
	assert.Equal(t, "eu-west-1", provider.region)
	assert.Equal(t, "http://localhost:4566", provider.endpointURL)
	assert.Nil(t, provider.client)
}
