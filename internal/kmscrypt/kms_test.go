package kmscrypt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"s3encrypt/internal/types"
)

// mockKMSAPI is a testify mock for the KMSAPI interface.
type mockKMSAPI struct {
	mock.Mock
}

func (m *mockKMSAPI) Decrypt(ctx context.Context, params *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.DecryptOutput)
	return out, args.Error(1)
}

func (m *mockKMSAPI) Encrypt(ctx context.Context, params *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*kms.EncryptOutput)
	return out, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKMSCipherSatisfiesInterfaces(t *testing.T) {
	var _ Cipher = (*KMSCipher)(nil)
	var _ Decrypter = (*KMSCipher)(nil)
	var _ Encrypter = (*KMSCipher)(nil)
}

func TestDecryptBindsEncryptionContext(t *testing.T) {
	api := &mockKMSAPI{}
	api.On("Decrypt", mock.Anything, mock.MatchedBy(func(in *kms.DecryptInput) bool {
		return string(in.CiphertextBlob) == "blob" &&
			len(in.EncryptionContext) == 1 &&
			in.EncryptionContext["Application"] == "ctx1"
	})).Return(&kms.DecryptOutput{
		KeyId:     aws.String("arn:aws:kms:us-east-1:111122223333:key/abc"),
		Plaintext: []byte(`{"user1":"pw1"}`),
	}, nil).Once()

	plaintext, err := NewKMSCipher(api, testLogger()).Decrypt(context.Background(), []byte("blob"), "ctx1")

	require.NoError(t, err)
	assert.Equal(t, `{"user1":"pw1"}`, string(plaintext))
	api.AssertExpectations(t)
}

func TestDecryptCustomContextKey(t *testing.T) {
	api := &mockKMSAPI{}
	api.On("Decrypt", mock.Anything, mock.MatchedBy(func(in *kms.DecryptInput) bool {
		return in.EncryptionContext["app"] == "ctx1"
	})).Return(&kms.DecryptOutput{Plaintext: []byte("x")}, nil).Once()

	_, err := NewKMSCipher(api, testLogger(), WithContextKey("app")).Decrypt(context.Background(), []byte("blob"), "ctx1")

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestDecryptErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"wrong context", &kmstypes.InvalidCiphertextException{Message: aws.String("")}, types.ErrCodeDecryptionInvalidCiphertext},
		{"incorrect key", &kmstypes.IncorrectKeyException{}, types.ErrCodeDecryptionInvalidCiphertext},
		{"generic invalid ciphertext", &smithy.GenericAPIError{Code: "InvalidCiphertextException"}, types.ErrCodeDecryptionInvalidCiphertext},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException"}, types.ErrCodeDecryptionFailed},
		{"disabled key", &kmstypes.DisabledException{}, types.ErrCodeDecryptionFailed},
		{"network", errors.New("dial tcp: i/o timeout"), types.ErrCodeDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockKMSAPI{}
			api.On("Decrypt", mock.Anything, mock.Anything).Return(nil, tt.err)

			plaintext, err := NewKMSCipher(api, testLogger()).Decrypt(context.Background(), []byte("blob"), "wrong-ctx")

			assert.Nil(t, plaintext)
			assert.Equal(t, tt.want, types.CodeOf(err))
			assert.Equal(t, types.KindDecryption, types.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
			api.AssertNumberOfCalls(t, "Decrypt", 1)
		})
	}
}

func TestDecryptRejectsEmptyInputWithoutCallingKMS(t *testing.T) {
	api := &mockKMSAPI{}
	cipher := NewKMSCipher(api, testLogger())

	_, err := cipher.Decrypt(context.Background(), nil, "ctx1")
	assert.Equal(t, types.ErrCodeDecryptionInvalidCiphertext, types.CodeOf(err))

	_, err = cipher.Decrypt(context.Background(), []byte("blob"), "")
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	api.AssertNotCalled(t, "Decrypt", mock.Anything, mock.Anything)
}

func TestEncrypt(t *testing.T) {
	api := &mockKMSAPI{}
	api.On("Encrypt", mock.Anything, mock.MatchedBy(func(in *kms.EncryptInput) bool {
		return aws.ToString(in.KeyId) == "alias/secrets" &&
			string(in.Plaintext) == `{"user1":"pw1"}` &&
			in.EncryptionContext["Application"] == "ctx1"
	})).Return(&kms.EncryptOutput{CiphertextBlob: []byte("blob")}, nil).Once()

	ciphertext, err := NewKMSCipher(api, testLogger(), WithKeyID("alias/secrets")).
		Encrypt(context.Background(), []byte(`{"user1":"pw1"}`), "ctx1")

	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), ciphertext)
	api.AssertExpectations(t)
}

func TestEncryptValidation(t *testing.T) {
	api := &mockKMSAPI{}

	_, err := NewKMSCipher(api, testLogger()).Encrypt(context.Background(), []byte("x"), "ctx1")
	assert.Equal(t, types.KindValidation, types.KindOf(err), "missing key id")

	withKey := NewKMSCipher(api, testLogger(), WithKeyID("alias/secrets"))
	_, err = withKey.Encrypt(context.Background(), []byte("x"), "")
	assert.Equal(t, types.KindValidation, types.KindOf(err), "missing context")

	_, err = withKey.Encrypt(context.Background(), []byte(strings.Repeat("x", maxPlaintextSize+1)), "ctx1")
	assert.Equal(t, types.ErrCodeEncryptionFailed, types.CodeOf(err), "too large")

	api.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything)
}

func TestEncryptKMSFailure(t *testing.T) {
	api := &mockKMSAPI{}
	api.On("Encrypt", mock.Anything, mock.Anything).Return(nil, &kmstypes.NotFoundException{})

	_, err := NewKMSCipher(api, testLogger(), WithKeyID("alias/missing")).Encrypt(context.Background(), []byte("x"), "ctx1")

	assert.Equal(t, types.ErrCodeEncryptionFailed, types.CodeOf(err))
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NotFoundException", appErr.Details["aws_error_code"])
}
