// Package kmscrypt delegates encryption and decryption of secrets documents
// to AWS KMS. The algorithm is entirely the key service's concern; this
// package only binds the encryption context and classifies failures.
package kmscrypt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"

	"s3encrypt/internal/types"
)

// DefaultContextKey is the encryption context map key the context string is
// bound under.
const DefaultContextKey = "Application"

// maxPlaintextSize is the KMS Encrypt payload limit.
const maxPlaintextSize = 4096

// Decrypter turns ciphertext back into plaintext. The encryption context must
// match the one used at encryption time.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte, encryptionContext string) ([]byte, error)
}

// Encrypter produces ciphertext bound to an encryption context.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte, encryptionContext string) ([]byte, error)
}

// Cipher both encrypts and decrypts.
type Cipher interface {
	Decrypter
	Encrypter
}

// KMSAPI is the subset of the KMS SDK client used by KMSCipher.
type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
}

// KMSCipher implements Decrypter and Encrypter with AWS KMS.
type KMSCipher struct {
	client     KMSAPI
	contextKey string
	// keyID is only required for Encrypt; KMS reads it from the ciphertext
	// blob when decrypting.
	keyID  string
	logger *slog.Logger
}

// Option configures a KMSCipher.
type Option func(*KMSCipher)

// WithContextKey overrides DefaultContextKey.
func WithContextKey(key string) Option {
	return func(c *KMSCipher) {
		if key != "" {
			c.contextKey = key
		}
	}
}

// WithKeyID sets the key used by Encrypt.
func WithKeyID(keyID string) Option {
	return func(c *KMSCipher) {
		c.keyID = keyID
	}
}

// NewKMSCipher creates a KMSCipher around an SDK client bound to a region.
func NewKMSCipher(client KMSAPI, logger *slog.Logger, opts ...Option) *KMSCipher {
	c := &KMSCipher{
		client:     client,
		contextKey: DefaultContextKey,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decrypt implements Decrypter. A wrong encryption context and a corrupt
// ciphertext are indistinguishable to KMS and both yield
// ErrCodeDecryptionInvalidCiphertext.
func (c *KMSCipher) Decrypt(ctx context.Context, ciphertext []byte, encryptionContext string) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, types.NewAppError(types.ErrCodeDecryptionInvalidCiphertext, "ciphertext is empty", nil)
	}
	if encryptionContext == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "encryption context is empty", nil)
	}

	out, err := c.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    ciphertext,
		EncryptionContext: c.bind(encryptionContext),
	})
	if err != nil {
		return nil, classifyKMSError(err, types.ErrCodeDecryptionFailed, "KMS Decrypt failed")
	}

	c.logger.DebugContext(ctx, "ciphertext decrypted",
		"key_id", aws.ToString(out.KeyId),
		"plaintext_length", len(out.Plaintext),
	)
	return out.Plaintext, nil
}

// Encrypt implements Encrypter.
func (c *KMSCipher) Encrypt(ctx context.Context, plaintext []byte, encryptionContext string) ([]byte, error) {
	if c.keyID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "a KMS key id is required to encrypt", nil)
	}
	if encryptionContext == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "encryption context is empty", nil)
	}
	if len(plaintext) > maxPlaintextSize {
		return nil, types.NewAppError(types.ErrCodeEncryptionFailed,
			fmt.Sprintf("plaintext is %d bytes, KMS accepts at most %d", len(plaintext), maxPlaintextSize), nil)
	}

	out, err := c.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(c.keyID),
		Plaintext:         plaintext,
		EncryptionContext: c.bind(encryptionContext),
	})
	if err != nil {
		return nil, classifyKMSError(err, types.ErrCodeEncryptionFailed, "KMS Encrypt failed")
	}

	c.logger.DebugContext(ctx, "plaintext encrypted",
		"key_id", aws.ToString(out.KeyId),
		"ciphertext_length", len(out.CiphertextBlob),
	)
	return out.CiphertextBlob, nil
}

func (c *KMSCipher) bind(encryptionContext string) map[string]string {
	return map[string]string{c.contextKey: encryptionContext}
}

// classifyKMSError maps SDK errors to decryption AppErrors. The error text
// from KMS never contains plaintext, so it is safe to wrap.
func classifyKMSError(err error, fallback types.ErrorCode, message string) error {
	code := fallback
	details := map[string]any{}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		details["aws_error_code"] = apiErr.ErrorCode()
		switch apiErr.ErrorCode() {
		case "InvalidCiphertextException", "IncorrectKeyException":
			code = types.ErrCodeDecryptionInvalidCiphertext
		}
	}

	var (
		invalidCiphertext *kmstypes.InvalidCiphertextException
		incorrectKey      *kmstypes.IncorrectKeyException
	)
	if errors.As(err, &invalidCiphertext) || errors.As(err, &incorrectKey) {
		code = types.ErrCodeDecryptionInvalidCiphertext
	}

	return types.NewAppErrorWithDetails(code, message, err, details)
}
