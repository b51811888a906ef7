package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"s3encrypt/internal/types"
)

// BreakerSettings tunes BreakerStore.
type BreakerSettings struct {
	Name string
	// MaxFailures is the number of consecutive infrastructure failures that
	// opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

// BreakerStore wraps an ObjectStore with a circuit breaker. It never retries:
// a failed call is returned as is, and once the breaker opens later calls
// fail immediately with ErrCodeRetrievalUnavailable.
//
// Only infrastructure failures count against the breaker. A missing object
// or a denied request is a definitive answer from a healthy store.
type BreakerStore struct {
	next    ObjectStore
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewBreakerStore creates a BreakerStore in front of next.
func NewBreakerStore(next ObjectStore, settings BreakerSettings, logger *slog.Logger) *BreakerStore {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("object store circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerStore{
		next:    next,
		breaker: cb,
		logger:  logger,
	}
}

// GetObject implements ObjectStore.
func (b *BreakerStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := b.breaker.Execute(func() ([]byte, error) {
		return b.next.GetObject(ctx, bucket, key)
	})
	if err != nil {
		return nil, b.mapError(err, bucket, key)
	}
	return body, nil
}

// PutObject implements ObjectStore.
func (b *BreakerStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := b.breaker.Execute(func() ([]byte, error) {
		return nil, b.next.PutObject(ctx, bucket, key, body, contentType)
	})
	if err != nil {
		return b.mapError(err, bucket, key)
	}
	return nil
}

// State exposes the breaker state for diagnostics.
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerStore) mapError(err error, bucket, key string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppErrorWithDetails(types.ErrCodeRetrievalUnavailable,
			fmt.Sprintf("object store unavailable, not contacting s3://%s/%s", bucket, key),
			err, location(bucket, key))
	}
	return err
}

// countsAsFailure reports whether err indicates an unhealthy store rather than
// a definitive answer about the requested object. Context cancellation is
// the caller's doing and is not counted.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch types.CodeOf(err) {
	case types.ErrCodeRetrievalNotFound,
		types.ErrCodeRetrievalBucketNotFound,
		types.ErrCodeRetrievalAccessDenied,
		types.ErrCodeRetrievalTooLarge:
		return false
	default:
		return true
	}
}
