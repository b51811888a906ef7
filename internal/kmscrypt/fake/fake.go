// Package fake implements an in-process stand-in for the key service. Its
// "ciphertext" is not secret; it only reproduces the context-binding and
// failure behaviour the fetch workflow depends on.
package fake

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"s3encrypt/internal/types"
)

var prefix = []byte("fake-kms:")

// Cipher implements kmscrypt.Decrypter and kmscrypt.Encrypter.
type Cipher struct {
	// DecryptErr, when set, is returned by every Decrypt call.
	DecryptErr error
	// DecryptCalls counts Decrypt invocations.
	DecryptCalls int
}

// Seal returns the ciphertext Decrypt accepts for plaintext under
// encryptionContext.
func Seal(plaintext []byte, encryptionContext string) []byte {
	out := append([]byte{}, prefix...)
	out = append(out, contextTag(encryptionContext)...)
	out = append(out, ':')
	return append(out, base64.StdEncoding.EncodeToString(plaintext)...)
}

// Encrypt implements kmscrypt.Encrypter.
func (c *Cipher) Encrypt(_ context.Context, plaintext []byte, encryptionContext string) ([]byte, error) {
	return Seal(plaintext, encryptionContext), nil
}

// Decrypt implements kmscrypt.Decrypter. A context other than the sealing one
// fails with ErrCodeDecryptionInvalidCiphertext, as KMS does.
func (c *Cipher) Decrypt(_ context.Context, ciphertext []byte, encryptionContext string) ([]byte, error) {
	c.DecryptCalls++
	if c.DecryptErr != nil {
		return nil, c.DecryptErr
	}

	want := append(append([]byte{}, prefix...), contextTag(encryptionContext)...)
	want = append(want, ':')
	if !bytes.HasPrefix(ciphertext, want) {
		return nil, types.NewAppError(types.ErrCodeDecryptionInvalidCiphertext, "fake KMS Decrypt failed", nil)
	}

	plaintext, err := base64.StdEncoding.DecodeString(string(ciphertext[len(want):]))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDecryptionInvalidCiphertext, "fake KMS Decrypt failed", err)
	}
	return plaintext, nil
}

func contextTag(encryptionContext string) string {
	sum := sha256.Sum256([]byte(encryptionContext))
	return hex.EncodeToString(sum[:8])
}
