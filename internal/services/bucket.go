package services

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

type BucketService interface {
	UploadFile(ctx context.Context, key string, contentType string, r io.Reader) error
	GetPublicURL(key string) string
	Close() error
}

type bucketService struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewBucketService opens a GCS client. An empty credentialsFile falls back to
// application default credentials.
func NewBucketService(ctx context.Context, log *logger.Logger, bucket, credentialsFile string) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	if bucket == "" {
		return nil, fmt.Errorf("missing export bucket name")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		serviceLog.Error("Failed to create GCS client", "error", err)
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	serviceLog.Info("GCS client ready :)", "bucket", bucket)
	return &bucketService{log: serviceLog, client: client, bucket: bucket}, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, key string, contentType string, r io.Reader) error {
	w := bs.client.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		bs.log.Warn("Failed to write object", "key", key, "error", err)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		bs.log.Warn("Failed to finalize object", "key", key, "error", err)
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	bs.log.Info("Uploaded object", "bucket", bs.bucket, "key", key)
	return nil
}

func (bs *bucketService) GetPublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucket, key)
}

func (bs *bucketService) Close() error {
	return bs.client.Close()
}
