package gateway

import (
	"context"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore is the object store used for s3:// export and import locations.
type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3Config holds the parameters of an S3-compatible backend (AWS S3 or MinIO).
// Credentials come from the default AWS chain.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// S3Blob stores exports in a single S3 bucket.
type S3Blob struct {
	client *s3.Client
	bucket string
}

// NewS3Blob creates an S3 blob store from cfg.
func NewS3Blob(ctx context.Context, cfg S3Config) (*S3Blob, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Blob{client: client, bucket: cfg.Bucket}, nil
}

// S3ConfigFromTarget builds an S3Config for an s3://bucket/prefix target.
func S3ConfigFromTarget(target, region, endpoint string, pathStyle bool) (S3Config, bool) {
	bucket, _, ok := parseS3URL(target)
	if !ok {
		return S3Config{}, false
	}
	return S3Config{Bucket: bucket, Region: region, Endpoint: endpoint, PathStyle: pathStyle}, true
}

func (b *S3Blob) Bucket() string { return b.bucket }

func (b *S3Blob) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	input := &s3.PutObjectInput{Bucket: &b.bucket, Key: &key, Body: r}
	if contentType != "" {
		input.ContentType = &contentType
	}
	_, err := b.client.PutObject(ctx, input)
	return err
}

func (b *S3Blob) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &key})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
