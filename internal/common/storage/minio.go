// internal/common/storage/minio.go
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoredObject is what the store hands back after an upload.
type StoredObject struct {
	URL        string
	ProviderID string
	Size       int64
}

// FileStore accepts uploads and deletes them again by provider id.
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error)
	Delete(ctx context.Context, providerID string) error
}

// MinioStore keeps uploaded documents in an S3 compatible bucket.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        logger.Logger
}

// NewMinioStore connects to the object store and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        log,
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created document bucket", map[string]interface{}{"bucket": s.bucket})
	return nil
}

// Upload streams r into the bucket under key. The object key doubles as provider id.
func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.Debug("Stored document file", map[string]interface{}{
		"bucket": s.bucket,
		"key":    key,
		"size":   info.Size,
	})

	return StoredObject{
		URL:        s.objectURL(key),
		ProviderID: key,
		Size:       info.Size,
	}, nil
}

// Delete removes the object identified by providerID.
func (s *MinioStore) Delete(ctx context.Context, providerID string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, providerID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", providerID, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio ping failed: %w", err)
	}
	return nil
}

func (s *MinioStore) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, key)
}

// ObjectKey builds the storage key for a file of an application document.
func ObjectKey(applicationID, documentID, fileID, fileName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, fileName)
	return fmt.Sprintf("applications/%s/%s/%s-%s", applicationID, documentID, fileID, name)
}
