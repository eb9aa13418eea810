// Package s3 implements the persistence backend on Amazon S3 or an
// S3-compatible store such as MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/stratacache/stratacache/pkg/types"
)

// Config configures the S3 backend.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

// Backend stores records as S3 objects under a key prefix.
type Backend struct {
	client *awss3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New loads the AWS configuration and builds the client. Static credentials
// are optional; without them the default provider chain applies. Endpoint
// and path style cover S3-compatible stores.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	logger = logger.With(zap.String("component", "s3-backend"))
	logger.Info("s3 backend ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("prefix", cfg.Prefix))
	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Read returns the record for key, or types.ErrNotFound.
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isErrorType[*s3types.NoSuchKey](err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body %s: %w", key, err)
	}
	return data, nil
}

// Write stores the record for key.
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key. S3 deletes are idempotent, so a
// missing object is not an error here.
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections between calls.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) objectKey(key string) string {
	return b.prefix + key
}

// isErrorType checks whether err wraps a specific API error type.
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
