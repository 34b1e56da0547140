// Package blob wraps the S3-compatible object store that holds result
// artifacts. Input images live under the same bucket but are written by the
// upload collaborator; this package only ever touches result paths.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/voxelmed/voxelmed/internal/config"
)

// Store is the interface for durable artifact storage.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	URL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// S3Store implements Store against any S3-compatible endpoint (S3, R2, MinIO).
type S3Store struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	publicURL     string
	presignExpiry time.Duration
	uploadTimeout time.Duration
}

// NewS3Store creates a new S3Store from blob configuration.
func NewS3Store(cfg config.BlobConfig) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("blob configuration incomplete")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicURL:     cfg.PublicURL,
		presignExpiry: cfg.PresignExpiry,
		uploadTimeout: cfg.UploadTimeout,
	}, nil
}

// Put uploads an artifact under the given path. The call carries its own
// deadline: the upload runs on the detached completion path, where a stalled
// connection would otherwise block the goroutine with nothing to cancel it.
func (s *S3Store) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", path, err)
	}
	return nil
}

// URL returns a fetchable URL for the artifact: the public CDN URL when one
// is configured, otherwise a presigned GET.
func (s *S3Store) URL(ctx context.Context, path string) (string, error) {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, path), nil
	}

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign blob %s: %w", path, err)
	}
	return presigned.URL, nil
}

// Delete removes an artifact. Deleting a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

// Compile-time check that S3Store implements Store.
var _ Store = (*S3Store)(nil)
