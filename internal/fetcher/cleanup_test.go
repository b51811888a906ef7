package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3encrypt/internal/types"
)

func TestRemove(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	require.NoError(t, afero.WriteFile(h.fs, testPath, []byte("x"), 0o600))

	require.NoError(t, h.f.Remove(context.Background(), testPath))
	exists, _ := afero.Exists(h.fs, testPath)
	assert.False(t, exists)

	// Already gone.
	assert.NoError(t, h.f.Remove(context.Background(), testPath))
}

func TestRemoveFailure(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	f := NewSecretFetcher(h.store, h.cipher, removeFailingFs{h.fs}, testLogger())

	err := f.Remove(context.Background(), testPath)
	assert.Equal(t, types.ErrCodeIODelete, types.CodeOf(err))

	assert.Equal(t, types.ErrCodeValidationInvalidPath, types.CodeOf(f.Remove(context.Background(), "relative.json")))
}

// TestRemoveFailureLogsRunContext verifies the failure is logged through the
// context logger, so the line carries the run id.
func TestRemoveFailureLogsRunContext(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	var buf bytes.Buffer
	runLogger := slog.New(slog.NewJSONHandler(&buf, nil)).With("run_id", "run-123")
	ctx := types.WithLogger(context.Background(), runLogger)

	f := NewSecretFetcher(h.store, h.cipher, removeFailingFs{h.fs}, nil)
	err := f.Remove(ctx, testPath)

	assert.Equal(t, types.ErrCodeIODelete, types.CodeOf(err))
	assert.Contains(t, buf.String(), `"run_id":"run-123"`)
	assert.Contains(t, buf.String(), "failed to remove plaintext secrets file")
}

func TestRemoveFailureWithNilLogger(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	f := NewSecretFetcher(h.store, h.cipher, removeFailingFs{h.fs}, nil)

	assert.NotPanics(t, func() {
		err := f.Remove(context.Background(), testPath)
		assert.Equal(t, types.ErrCodeIODelete, types.CodeOf(err))
	})
}

func TestWithFile(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)

	var seen string
	err := h.f.WithFile(context.Background(), testRef(), testPath, func(path string) error {
		data, err := afero.ReadFile(h.fs, path)
		seen = string(data)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, `{"user1":"pw1"}`, seen)
	exists, _ := afero.Exists(h.fs, testPath)
	assert.False(t, exists, "plaintext must be removed after the workflow")
}

func TestWithFileConsumerFailureStillCleansUp(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	consumeErr := errors.New("consumer failed")

	err := h.f.WithFile(context.Background(), testRef(), testPath, func(string) error {
		return consumeErr
	})

	assert.ErrorIs(t, err, consumeErr)
	exists, _ := afero.Exists(h.fs, testPath)
	assert.False(t, exists)
}

func TestWithFileConsumerPanicStillCleansUp(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)

	assert.Panics(t, func() {
		_ = h.f.WithFile(context.Background(), testRef(), testPath, func(string) error {
			panic("boom")
		})
	})
	exists, _ := afero.Exists(h.fs, testPath)
	assert.False(t, exists)
}

// TestWithFileCleanupFailure verifies a failed delete after a successful
// fetch and consume is reported as an overall failure.
func TestWithFileCleanupFailure(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	f := NewSecretFetcher(h.store, h.cipher, removeFailingFs{h.fs}, testLogger())

	consumed := false
	err := f.WithFile(context.Background(), testRef(), testPath, func(string) error {
		consumed = true
		return nil
	})

	assert.True(t, consumed)
	require.Error(t, err)
	assert.Equal(t, types.KindIO, types.KindOf(err))
	assert.Equal(t, types.ErrCodeIODelete, types.CodeOf(err))
}

func TestWithFileConsumerAndCleanupFailure(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	f := NewSecretFetcher(h.store, h.cipher, removeFailingFs{h.fs}, testLogger())
	consumeErr := types.NewAppError(types.ErrCodeInternalUnexpected, "consumer failed", nil)

	err := f.WithFile(context.Background(), testRef(), testPath, func(string) error {
		return consumeErr
	})

	assert.ErrorIs(t, err, consumeErr)
	assert.True(t, types.IsKind(err, types.KindIO))
}

func TestWithFileFetchFailureSkipsConsumer(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)
	ref := testRef()
	ref.EncryptionContext = "wrong-ctx"

	called := false
	err := h.f.WithFile(context.Background(), ref, testPath, func(string) error {
		called = true
		return nil
	})

	assert.Equal(t, types.KindDecryption, types.KindOf(err))
	assert.False(t, called)
}

func TestWithFileNilConsumer(t *testing.T) {
	h := newHarness(`{"user1":"pw1"}`)

	require.NoError(t, h.f.WithFile(context.Background(), testRef(), testPath, nil))
	exists, _ := afero.Exists(h.fs, testPath)
	assert.False(t, exists)
}
