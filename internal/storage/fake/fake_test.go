package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3encrypt/internal/storage"
	"s3encrypt/internal/types"
)

func TestStoreSatisfiesInterface(t *testing.T) {
	var _ storage.ObjectStore = (*Store)(nil)
}

func TestStore(t *testing.T) {
	s := NewStore()
	s.Put("secrets-bucket", "secrets/secrets.json", []byte("ct"))

	body, err := s.GetObject(context.Background(), "secrets-bucket", "secrets/secrets.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), body)

	_, err = s.GetObject(context.Background(), "secrets-bucket", "missing")
	assert.Equal(t, types.ErrCodeRetrievalNotFound, types.CodeOf(err))

	_, err = s.GetObject(context.Background(), "other", "secrets/secrets.json")
	assert.Equal(t, types.ErrCodeRetrievalBucketNotFound, types.CodeOf(err))

	assert.Equal(t, types.ErrCodeRetrievalBucketNotFound,
		types.CodeOf(s.PutObject(context.Background(), "other", "k", []byte("x"), "")))

	s.Denied["secrets-bucket"] = true
	_, err = s.GetObject(context.Background(), "secrets-bucket", "secrets/secrets.json")
	assert.Equal(t, types.ErrCodeRetrievalAccessDenied, types.CodeOf(err))
	assert.Equal(t, 4, s.GetCalls)
}
