package bucket

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// S3API is the subset of the S3 client used by S3Client.
type S3API interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, input *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Client implements Client against an S3-compatible object store.
type S3Client struct {
	client S3API
	bucket string
}

// S3Option configures an S3Client.
type S3Option func(*S3Client)

// WithS3API sets a custom S3 client (useful for testing).
func WithS3API(api S3API) S3Option {
	return func(c *S3Client) { c.client = api }
}

// NewS3Client creates a Client for the configured bucket. A non-empty
// endpoint switches to path-style addressing for MinIO-style stores.
func NewS3Client(ctx context.Context, cfg types.BucketConfig, opts ...S3Option) (*S3Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	c := &S3Client{bucket: cfg.Name}
	for _, o := range opts {
		o(c)
	}
	if c.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		c.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	}
	return c, nil
}

// List returns the immediate subdirectory prefixes and object keys under prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]string, []string, error) {
	var dirs, files []string

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			listErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("bucket", c.bucket),
			))
			return nil, nil, fmt.Errorf("list %s/%s: %w", c.bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				dirs = append(dirs, *cp.Prefix)
			}
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && *obj.Key != prefix {
				files = append(files, *obj.Key)
			}
		}
	}
	return dirs, files, nil
}

// Download fetches an object's bytes.
func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	downloader := manager.NewDownloader(c.client)
	buf := manager.NewWriteAtBuffer([]byte{})

	size, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", c.bucket, key, err)
	}

	downloadCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", c.bucket),
	))
	downloadBytes.Add(ctx, size, metric.WithAttributes(
		attribute.String("bucket", c.bucket),
	))
	return buf.Bytes(), nil
}

// Copy performs a server-side copy within the bucket.
func (c *S3Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	source := url.PathEscape(c.bucket + "/" + srcKey)
	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(source),
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, err)
	}
	moveCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", c.bucket),
	))
	return nil
}

// Delete removes an object. A missing key is treated as already deleted.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
