// Package fetcher implements the fetch-decrypt workflow for encrypted secrets
// documents: the ciphertext is read from an ObjectStore, decrypted by a
// Decrypter bound to the reference's encryption context, and either written to
// a local file or parsed into a SecretMap.
//
// Every call is independent and nothing is retried. Plaintext buffers are
// zeroed once they have been written or parsed.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"s3encrypt/internal/kmscrypt"
	"s3encrypt/internal/storage"
	"s3encrypt/internal/types"
)

const (
	fileMode os.FileMode = 0o600
	dirMode  os.FileMode = 0o700
)

// SecretFetcher retrieves and decrypts secrets documents.
type SecretFetcher struct {
	store     storage.ObjectStore
	decrypter kmscrypt.Decrypter
	fs        afero.Fs
	logger    *slog.Logger
}

// NewSecretFetcher creates a SecretFetcher. The store and decrypter must be
// bound to the region of the references passed to it. A nil logger means
// slog.Default().
func NewSecretFetcher(store storage.ObjectStore, decrypter kmscrypt.Decrypter, fs afero.Fs, logger *slog.Logger) *SecretFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecretFetcher{
		store:     store,
		decrypter: decrypter,
		fs:        fs,
		logger:    logger,
	}
}

// FetchToFile writes the decrypted document to localPath with mode 0600,
// creating missing parent directories. An existing file is replaced. On
// failure no plaintext is left at localPath or beside it.
//
// The caller owns the file after a successful return and must delete it,
// normally through Remove or by using WithFile instead.
func (f *SecretFetcher) FetchToFile(ctx context.Context, ref types.EncryptedObjectRef, localPath string) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	path, err := validatePath(localPath)
	if err != nil {
		return err
	}

	plaintext, err := f.fetch(ctx, ref)
	if err != nil {
		return err
	}
	defer types.Wipe(plaintext)

	if err := f.writeFile(path, plaintext); err != nil {
		return err
	}

	f.log(ctx).InfoContext(ctx, "secrets written to file",
		"object", ref.String(),
		"path", path,
		"bytes", len(plaintext),
	)
	return nil
}

// FetchAsStructured decrypts the document and parses it as a flat JSON
// object. Nothing is written to the filesystem.
func (f *SecretFetcher) FetchAsStructured(ctx context.Context, ref types.EncryptedObjectRef) (types.SecretMap, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	plaintext, err := f.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer types.Wipe(plaintext)

	secrets, err := ParseDocument(plaintext)
	if err != nil {
		return nil, err
	}

	f.log(ctx).InfoContext(ctx, "secrets decrypted in memory",
		"object", ref.String(),
		"secrets", secrets,
	)
	return secrets, nil
}

// FetchValue returns a single entry of the decrypted document.
func (f *SecretFetcher) FetchValue(ctx context.Context, ref types.EncryptedObjectRef, key string) (types.SecretString, error) {
	secrets, err := f.FetchAsStructured(ctx, ref)
	if err != nil {
		return "", err
	}
	value, ok := secrets.Get(key)
	if !ok {
		return "", types.NewAppErrorWithDetails(types.ErrCodeParseMissingKey,
			fmt.Sprintf("secrets document has no key %q", key), nil,
			map[string]any{"keys": secrets.Keys()})
	}
	return value, nil
}

func (f *SecretFetcher) fetch(ctx context.Context, ref types.EncryptedObjectRef) ([]byte, error) {
	logger := f.log(ctx)

	ciphertext, err := f.store.GetObject(ctx, ref.Bucket, ref.RemotePath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to download ciphertext",
			"object", ref.String(),
			"error_code", types.CodeOf(err),
		)
		return nil, err
	}

	plaintext, err := f.decrypter.Decrypt(ctx, ciphertext, ref.EncryptionContext)
	if err != nil {
		logger.ErrorContext(ctx, "failed to decrypt ciphertext",
			"object", ref.String(),
			"error_code", types.CodeOf(err),
		)
		if types.KindOf(err) == types.KindDecryption || types.KindOf(err) == types.KindValidation {
			return nil, err
		}
		return nil, types.NewAppError(types.ErrCodeDecryptionFailed, "decrypting "+ref.String(), err)
	}

	logger.DebugContext(ctx, "ciphertext decrypted",
		"object", ref.String(),
		"ciphertext_bytes", len(ciphertext),
		"plaintext_bytes", len(plaintext),
	)
	return plaintext, nil
}

// writeFile writes through a temporary sibling that is renamed into place.
func (f *SecretFetcher) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := f.fs.MkdirAll(dir, dirMode); err != nil {
		return ioError(types.ErrCodeIOWrite, "creating directory "+dir, err, path)
	}

	tmp, err := afero.TempFile(f.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ioError(types.ErrCodeIOWrite, "creating temporary file in "+dir, err, path)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return ioError(types.ErrCodeIOWrite, "writing "+tmpName, err, path)
	}
	if err := tmp.Sync(); err != nil {
		return ioError(types.ErrCodeIOWrite, "syncing "+tmpName, err, path)
	}
	if err := tmp.Close(); err != nil {
		return ioError(types.ErrCodeIOWrite, "closing "+tmpName, err, path)
	}
	if err := f.fs.Chmod(tmpName, fileMode); err != nil {
		return ioError(types.ErrCodeIOWrite, "setting mode on "+tmpName, err, path)
	}
	if err := f.fs.Rename(tmpName, path); err != nil {
		return ioError(types.ErrCodeIOWrite, "renaming "+tmpName, err, path)
	}
	committed = true
	return nil
}

func (f *SecretFetcher) log(ctx context.Context) *slog.Logger {
	return types.LoggerFromContext(ctx, f.logger)
}

// validatePath requires a non-empty absolute path that does not name a
// directory.
func validatePath(localPath string) (string, error) {
	trimmed := strings.TrimSpace(localPath)
	switch {
	case trimmed == "":
		return "", types.NewAppError(types.ErrCodeValidationInvalidPath, "local path is empty", nil)
	case !filepath.IsAbs(trimmed):
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPath,
			"local path must be absolute", nil, map[string]any{"path": trimmed})
	case strings.HasSuffix(trimmed, string(filepath.Separator)):
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPath,
			"local path names a directory", nil, map[string]any{"path": trimmed})
	}
	return filepath.Clean(trimmed), nil
}

func ioError(code types.ErrorCode, message string, err error, path string) error {
	details := map[string]any{"path": path}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		details["op"] = pathErr.Op
	}
	return types.NewAppErrorWithDetails(code, message, err, details)
}
