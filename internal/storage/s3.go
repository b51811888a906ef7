// Package storage provides the object store holding encrypted secrets.
//
// ObjectStore is the seam used by the fetch workflow; S3Store implements it
// on top of the AWS SDK and BreakerStore adds fail-fast behaviour in front of
// any implementation. Every error returned by this package is a
// *types.AppError of the retrieval kind.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"s3encrypt/internal/types"
)

// MaxObjectSize bounds how much of an object is read into memory. Secrets
// documents are small; anything larger is almost certainly the wrong key.
const MaxObjectSize = 4 << 20

// ObjectStore abstracts object retrieval and upload for testability.
type ObjectStore interface {
	// GetObject returns the full body of bucket/key.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	// PutObject stores body at bucket/key, replacing any existing object.
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// S3API is the subset of the S3 SDK client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements ObjectStore using Amazon S3.
type S3Store struct {
	client S3API
	logger *slog.Logger
}

// NewS3Store creates an S3Store around an SDK client. The client must already
// be bound to the region that holds the bucket.
func NewS3Store(client S3API, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		logger: logger,
	}
}

// GetObject downloads bucket/key. Missing objects, missing buckets and access
// failures are distinguished by error code.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "GetObject", bucket, key)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > MaxObjectSize {
		return nil, tooLarge(bucket, key, *out.ContentLength)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeRetrievalFailed,
			fmt.Sprintf("reading s3://%s/%s", bucket, key), err, location(bucket, key))
	}
	if n > MaxObjectSize {
		return nil, tooLarge(bucket, key, n)
	}

	s.logger.DebugContext(ctx, "object downloaded",
		"bucket", bucket,
		"key", key,
		"size", n,
	)
	return buf.Bytes(), nil
}

// PutObject uploads body to bucket/key.
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return classifyS3Error(err, "PutObject", bucket, key)
	}

	s.logger.DebugContext(ctx, "object uploaded",
		"bucket", bucket,
		"key", key,
		"size", len(body),
	)
	return nil
}

// classifyS3Error maps SDK errors to retrieval AppErrors. Typed SDK errors are
// checked first, then the generic smithy API error code (HeadObject-style
// responses without a body only carry the HTTP-derived code).
func classifyS3Error(err error, op, bucket, key string) error {
	code := types.ErrCodeRetrievalFailed

	var (
		noSuchKey    *s3types.NoSuchKey
		noSuchBucket *s3types.NoSuchBucket
		notFound     *s3types.NotFound
		apiErr       smithy.APIError
	)
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		code = types.ErrCodeRetrievalNotFound
	case errors.As(err, &noSuchBucket):
		code = types.ErrCodeRetrievalBucketNotFound
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			code = types.ErrCodeRetrievalNotFound
		case "NoSuchBucket":
			code = types.ErrCodeRetrievalBucketNotFound
		case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			code = types.ErrCodeRetrievalAccessDenied
		}
	}

	return types.NewAppErrorWithDetails(code,
		fmt.Sprintf("S3 %s s3://%s/%s failed", op, bucket, key), err, location(bucket, key))
}

func tooLarge(bucket, key string, size int64) error {
	return types.NewAppErrorWithDetails(types.ErrCodeRetrievalTooLarge,
		fmt.Sprintf("s3://%s/%s is %d bytes, limit is %d", bucket, key, size, MaxObjectSize),
		nil, location(bucket, key))
}

func location(bucket, key string) map[string]any {
	return map[string]any{"bucket": bucket, "key": key}
}
