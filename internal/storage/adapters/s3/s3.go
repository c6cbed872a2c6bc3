// Package s3 implements the archive on AWS S3 or any S3-compatible
// object store.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"usage-harvester/internal/config"
	"usage-harvester/internal/observability"
	"usage-harvester/internal/storage"
)

// Client implements ObjectStorage for S3 buckets.
type Client struct {
	s3Client      *s3.Client
	defaultBucket string
	logger        observability.Logger
	metrics       observability.Metrics
}

// New creates an S3 archive client. A custom endpoint (e.g. MinIO)
// switches the client to path-style addressing.
func New(cfg config.Config, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3Client:      s3Client,
		defaultBucket: cfg.ArchiveBucket,
		logger:        logger.WithFields(observability.Fields{"archive": "s3"}),
		metrics:       metrics,
	}, nil
}

// Put stores an object in the bucket.
func (c *Client) Put(ctx context.Context, bucket, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	start := time.Now()
	if bucket == "" {
		bucket = c.defaultBucket
	}

	// The S3 SDK needs a seekable body, so buffer the payload.
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, reader); err != nil {
		c.metrics.RecordError("archive_put", "read")
		return fmt.Errorf("failed to read content: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		c.metrics.RecordError("archive_put", "put_object")
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}

	c.metrics.RecordSuccess("archive_put")
	c.metrics.RecordDuration("archive_put", time.Since(start).Seconds())
	c.logger.Debug(ctx, "Archived object", observability.Fields{
		"bucket": bucket,
		"key":    key,
		"bytes":  buf.Len(),
	})
	return nil
}

// Get retrieves a stored object.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" {
		bucket = c.defaultBucket
	}

	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.metrics.RecordError("archive_get", "get_object")
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	c.metrics.RecordSuccess("archive_get")
	return out.Body, nil
}

func buildAWSConfig(cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(context.Background(), opts...)
}
