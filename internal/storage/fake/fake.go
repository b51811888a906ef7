// Package fake implements an in-memory ObjectStore for tests.
package fake

import (
	"context"
	"fmt"

	"s3encrypt/internal/types"
)

// Store implements storage.ObjectStore over a map. Buckets must be created
// with AddBucket (or implicitly by Put) before objects can be read.
type Store struct {
	buckets map[string]map[string][]byte
	// Denied lists buckets whose access fails with ErrCodeRetrievalAccessDenied.
	Denied map[string]bool
	// GetCalls counts GetObject invocations.
	GetCalls int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		buckets: make(map[string]map[string][]byte),
		Denied:  make(map[string]bool),
	}
}

// AddBucket creates an empty bucket.
func (s *Store) AddBucket(bucket string) {
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string][]byte)
	}
}

// Put stores an object, creating the bucket when needed.
func (s *Store) Put(bucket, key string, body []byte) {
	s.AddBucket(bucket)
	s.buckets[bucket][key] = append([]byte{}, body...)
}

// Object returns a stored object.
func (s *Store) Object(bucket, key string) ([]byte, bool) {
	body, ok := s.buckets[bucket][key]
	return body, ok
}

// GetObject implements storage.ObjectStore.
func (s *Store) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	s.GetCalls++
	if err := s.check(bucket); err != nil {
		return nil, err
	}
	body, ok := s.buckets[bucket][key]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeRetrievalNotFound, fmt.Sprintf("s3://%s/%s not found", bucket, key), nil)
	}
	return append([]byte{}, body...), nil
}

// PutObject implements storage.ObjectStore.
func (s *Store) PutObject(_ context.Context, bucket, key string, body []byte, _ string) error {
	if err := s.check(bucket); err != nil {
		return err
	}
	s.buckets[bucket][key] = append([]byte{}, body...)
	return nil
}

func (s *Store) check(bucket string) error {
	if s.Denied[bucket] {
		return types.NewAppError(types.ErrCodeRetrievalAccessDenied, fmt.Sprintf("access to %s denied", bucket), nil)
	}
	if _, ok := s.buckets[bucket]; !ok {
		return types.NewAppError(types.ErrCodeRetrievalBucketNotFound, fmt.Sprintf("bucket %s does not exist", bucket), nil)
	}
	return nil
}
