// Package blob stores photo blobs in an S3-compatible backend (MinIO in
// development).
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/fieldops/techsync/internal/server/config"
)

// Store is the object storage surface the photo endpoint needs.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}

// S3Store implements Store with the AWS SDK.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds a client against the configured endpoint. Path-style
// addressing keeps MinIO happy.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %q: %w", key, err)
	}
	return nil
}

// StorageKey derives a stable object key from the photo's client-minted id,
// so a re-upload after a lost acknowledgment lands on the same object.
func StorageKey(photoID, fileName string) string {
	return fmt.Sprintf("photos/%s/%s", photoID, fileName)
}
