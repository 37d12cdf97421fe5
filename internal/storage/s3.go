package storage

import (
	"context"

	"github.com/jmgilman/go/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/muandane/special-stack/invoicer/internal/config"
)

// NewMinioClient creates a MinIO client from the storage configuration
func NewMinioClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errors.CodeInvalidConfig, "failed to initialize minio client"),
			"endpoint", cfg.Endpoint,
		)
	}
	return client, nil
}

// EnsureBucket creates bucket unless it already exists
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "failed to check bucket")
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.WithContext(
			errors.Wrap(err, errors.CodeDatabase, "failed to create bucket"),
			"bucket", bucket,
		)
	}
	return nil
}
