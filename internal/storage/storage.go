// Package storage provides object storage abstractions for the lab workloads.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
	ErrNotSupported   = errors.New("operation not supported by this backend")
)

// ObjectInfo describes a stored object or one version of it.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	// VersionID and IsLatest are only set by ListVersions.
	VersionID string
	IsLatest  bool
}

// ObjectStorage abstracts object storage operations.
// Implementations include S3, MinIO, and the local filesystem for testing.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath with the given content type
	// (empty for the backend default).
	Upload(ctx context.Context, localPath, objectPath, contentType string) error

	// Put writes data to objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error

	// Get reads the full content of objectPath.
	// Returns ErrObjectNotFound if it does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Download copies objectPath to localPath.
	// Returns ErrObjectNotFound if it does not exist.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all objects under the given prefix, sorted by key.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Versioned is implemented by backends that keep object versions.
type Versioned interface {
	// EnableVersioning turns on versioning for the bucket.
	EnableVersioning(ctx context.Context) error

	// VersioningStatus returns the bucket's versioning status ("Enabled",
	// "Suspended", or "" when never configured).
	VersioningStatus(ctx context.Context) (string, error)

	// ListVersions returns every stored version of key, newest first.
	ListVersions(ctx context.Context, key string) ([]ObjectInfo, error)
}

// Presigner is implemented by backends that can issue time-limited URLs.
type Presigner interface {
	// PresignGet returns a URL that allows an unauthenticated GET of key
	// until expiry elapses.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ContentTypeFor guesses a content type from the object key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".sz":
		return "application/x-snappy-framed"
	default:
		return "application/octet-stream"
	}
}
