package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"s3encrypt/internal/config"
	"s3encrypt/internal/kmscrypt"
	"s3encrypt/internal/storage"
	"s3encrypt/internal/types"
)

// newAWSBackend builds S3 and KMS clients for region. The region is passed
// explicitly; AWS_REGION is never modified. Credentials come from the default
// chain. A configured endpoint (LocalStack) switches S3 to path-style
// addressing.
func newAWSBackend(ctx context.Context, cfg *config.Config, region string, logger *slog.Logger) (*backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
			"loading AWS configuration", err, map[string]any{"region": region})
	}

	endpoint := cfg.AWS.EndpointURL
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	kmsClient := kms.NewFromConfig(awsCfg, func(o *kms.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := storage.NewBreakerStore(
		storage.NewS3Store(s3Client, logger),
		storage.BreakerSettings{
			Name:        "s3-" + region,
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		},
		logger,
	)
	cipher := kmscrypt.NewKMSCipher(kmsClient, logger,
		kmscrypt.WithContextKey(cfg.Secret.ContextKey),
		kmscrypt.WithKeyID(cfg.AWS.KMSKeyID),
	)

	logger.Debug("AWS clients ready", "region", region, "custom_endpoint", endpoint != "")
	return &backend{Store: store, Cipher: cipher}, nil
}
