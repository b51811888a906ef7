package fetcher

import (
	"context"
	"errors"
	"os"

	"s3encrypt/internal/types"
)

// Remove deletes a plaintext file. A file that is already gone is not an
// error.
func (f *SecretFetcher) Remove(ctx context.Context, localPath string) error {
	path, err := validatePath(localPath)
	if err != nil {
		return err
	}
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.log(ctx).ErrorContext(ctx, "failed to remove plaintext secrets file", "path", path, "error", err)
		return ioError(types.ErrCodeIODelete, "removing "+path, err, path)
	}
	return nil
}

// WithFile fetches the document to localPath, hands the path to consume and
// removes the file afterwards. Removal runs whenever the fetch succeeded, even
// if consume fails or panics. A failed removal fails the whole call; when
// both consume and removal fail the returned error joins the two.
func (f *SecretFetcher) WithFile(ctx context.Context, ref types.EncryptedObjectRef, localPath string, consume func(path string) error) (err error) {
	if err := f.FetchToFile(ctx, ref, localPath); err != nil {
		return err
	}
	path, _ := validatePath(localPath)

	defer func() {
		if rmErr := f.Remove(ctx, path); rmErr != nil {
			err = errors.Join(err, rmErr)
			return
		}
		f.log(ctx).DebugContext(ctx, "plaintext secrets file removed", "path", path)
	}()

	if consume == nil {
		return nil
	}
	return consume(path)
}
