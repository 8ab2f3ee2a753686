package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go"
)

// MinioConfig holds connection settings for a MinIO server.
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Secure          bool
	Region          string
}

// MinioStorage implements ObjectStorage and Presigner using the MinIO client.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	region     string
	maxRetries int
}

// NewMinioStorage creates a MinIO-backed storage for bucket. The endpoint is
// host:port without a scheme; Secure selects https.
func NewMinioStorage(bucket string, cfg MinioConfig) (*MinioStorage, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Secure)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStorage{
		client:     client,
		bucket:     bucket,
		region:     cfg.Region,
		maxRetries: 3,
	}, nil
}

// Bucket returns the bucket name.
func (m *MinioStorage) Bucket() string {
	return m.bucket
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(m.bucket, m.region); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Upload uploads a file to MinIO.
func (m *MinioStorage) Upload(ctx context.Context, localPath, objectPath, contentType string) error {
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		_, err := m.client.FPutObjectWithContext(ctx, m.bucket, objectPath, localPath,
			minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Put writes data to MinIO.
func (m *MinioStorage) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		_, err := m.client.PutObjectWithContext(ctx, m.bucket, objectPath, bytes.NewReader(data),
			int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Get reads an object from MinIO.
func (m *MinioStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	var data []byte
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		obj, err := m.client.GetObjectWithContext(ctx, m.bucket, objectPath, minio.GetObjectOptions{})
		if err != nil {
			return m.mapError(err)
		}
		defer obj.Close()
		data, err = ioutil.ReadAll(obj)
		return m.mapError(err)
	})
	if err != nil {
		if err == ErrObjectNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

// Download downloads an object from MinIO to localPath.
func (m *MinioStorage) Download(ctx context.Context, objectPath, localPath string) error {
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		return m.mapError(m.client.FGetObjectWithContext(ctx, m.bucket, objectPath, localPath,
			minio.GetObjectOptions{}))
	})
	if err != nil {
		if err == ErrObjectNotFound {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// Delete removes an object from MinIO.
func (m *MinioStorage) Delete(ctx context.Context, objectPath string) error {
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		return m.client.RemoveObject(m.bucket, objectPath)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists checks if an object exists in MinIO.
func (m *MinioStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := m.client.StatObject(m.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		if m.mapError(err) == ErrObjectNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all objects under the given prefix.
func (m *MinioStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	done := make(chan struct{})
	defer close(done)

	var objects []ObjectInfo
	for obj := range m.client.ListObjectsV2(m.bucket, prefix, true, done) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// PresignGet returns a presigned GET URL for key.
func (m *MinioStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinioStorage) mapError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrObjectNotFound
	}
	return err
}
