// Package storage uploads binary blobs to S3 and returns retrievable URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client used by the adapter.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Opts holds configuration options for the S3 adapter.
type Opts struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Option defines a configuration option for the S3 adapter.
type Option func(*Opts)

// WithBucket sets the bucket name.
func WithBucket(bucket string) Option {
	return func(o *Opts) { o.Bucket = bucket }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *Opts) { o.Region = region }
}

// WithCredentials sets static AWS credentials.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *Opts) {
		o.AccessKey = accessKey
		o.SecretKey = secretKey
	}
}

// S3Service uploads objects to a single configured bucket.
type S3Service struct {
	client s3API
	bucket string
	region string
}

// NewS3Service builds the S3 client and verifies the bucket is reachable.
// An unreachable bucket is a fatal initialization error, not retried.
func NewS3Service(ctx context.Context, opts ...Option) (*S3Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("S3_BUCKET")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = os.Getenv("AWS_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv("AWS_SECRET_KEY")
	}
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("S3 bucket and region must be provided")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	svc := &S3Service{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket, region: cfg.Region}
	if _, err := svc.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		slog.Error("S3 bucket unreachable at startup", "error", err, "bucket", cfg.Bucket)
		return nil, fmt.Errorf("failed to initialize S3: %w", err)
	}
	slog.Debug("S3 object store ready", "bucket", cfg.Bucket, "region", cfg.Region)
	return svc, nil
}

// newS3ServiceWithAPI is used by tests to inject a mock S3 API.
func newS3ServiceWithAPI(api s3API, bucket, region string) *S3Service {
	return &S3Service{client: api, bucket: bucket, region: region}
}

// Upload stores data under the given key and returns the public object URL.
func (s *S3Service) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Error("S3 upload failed", "error", err, "key", key)
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	slog.Debug("S3 object uploaded", "key", key, "bytes", len(data))
	return url, nil
}
