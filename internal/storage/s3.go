package storage

import (
	"context"
	"io"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rfsouza01/contacthub/internal/config"
)

// S3Store writes blobs to an S3 (or MinIO) bucket. The public asset base URL
// is expected to point at the bucket or a CDN in front of it.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg config.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))

	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.S3Endpoint)
			// MinIO and friends want path-style addressing
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: cfg.PublicAssetBaseURL,
	}, nil
}

func (s *S3Store) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	key, err := NewKey(ext)

	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   r,
	})

	if err != nil {
		return "", err
	}

	return key, nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	// DeleteObject succeeds for missing keys, which is exactly the
	// idempotency the contract asks for
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	})

	return err
}

func (s *S3Store) PublicURL(path string) string {
	return joinURL(s.baseURL, path)
}
