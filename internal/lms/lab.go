package lms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
	"github.com/storelabs/storelabs/internal/storage"
)

// UpdatedAnnouncement replaces the CS101 announcement.
const UpdatedAnnouncement = "CS101: Assignment 1 deadline extended to Oct 5,2025 11:59 PM.\nPlease check your emails for details.\n"

// Lab runs the LMS workload against one bucket.
type Lab struct {
	store  storage.ObjectStorage
	dir    string
	logger logrus.FieldLogger
	stats  *report.Stats
	client *http.Client
}

// NewLab creates a lab over store reading dummy files from dir.
func NewLab(store storage.ObjectStorage, dir string, logger logrus.FieldLogger) *Lab {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Lab{
		store:  store,
		dir:    dir,
		logger: logger.WithField("component", "lms"),
		stats:  report.NewStats(),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the client used for presigned downloads.
func (l *Lab) WithHTTPClient(c *http.Client) *Lab {
	l.client = c
	return l
}

// Stats returns the collected operation timings.
func (l *Lab) Stats() *report.Stats {
	return l.stats
}

// Dir returns the dummy file directory.
func (l *Lab) Dir() string {
	return l.dir
}

// PrepareFiles writes the dummy files of plan into the lab directory.
func (l *Lab) PrepareFiles(plan []PlanItem) ([]string, error) {
	paths, err := WriteDummyFiles(l.dir, plan)
	if err != nil {
		return paths, err
	}
	l.logger.WithFields(logrus.Fields{"dir": l.dir, "files": len(paths)}).Info("dummy files written")
	return paths, nil
}

// UploadAll uploads every plan item from the lab directory. It stops at the
// first failure and returns how many objects were uploaded.
func (l *Lab) UploadAll(ctx context.Context, plan []PlanItem) (int, error) {
	var uploaded int
	err := l.stats.Time(ctx, "upload_all", func(ctx context.Context) error {
		for _, item := range plan {
			local := filepath.Join(l.dir, item.File)
			if err := l.store.Upload(ctx, local, item.Key, item.ContentType); err != nil {
				return errors.NewStorageError(errors.CodeUploadFailed, "upload "+item.Key, err)
			}
			uploaded++
			l.logger.WithField("key", item.Key).Debug("uploaded")
		}
		return nil
	})
	l.logger.WithField("uploaded", uploaded).Info("upload plan finished")
	return uploaded, err
}

// List returns the objects under prefix.
func (l *Lab) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	err := l.stats.Time(ctx, "list", func(ctx context.Context) error {
		var err error
		objects, err = l.store.ListObjects(ctx, prefix)
		if err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, "list "+prefix, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, o := range objects {
		l.logger.WithFields(logrus.Fields{"key": o.Key, "size": o.Size}).Info("listed")
	}
	if len(objects) == 0 {
		l.logger.WithField("prefix", prefix).Info("no objects under prefix")
	}
	return objects, nil
}

// UpdateAnnouncement overwrites key with text and returns the content read
// back after the write.
func (l *Lab) UpdateAnnouncement(ctx context.Context, key, text string) (string, error) {
	var current []byte
	err := l.stats.Time(ctx, "update_announcement", func(ctx context.Context) error {
		if err := l.store.Put(ctx, key, []byte(text), "text/plain"); err != nil {
			return errors.NewStorageError(errors.CodeUploadFailed, "put "+key, err)
		}
		var err error
		current, err = l.store.Get(ctx, key)
		if err != nil {
			return storageReadError(key, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	l.logger.WithField("key", key).Info("announcement updated")
	return string(current), nil
}

// EnableVersioning enables bucket versioning and returns the status read
// back. Backends without versioning return storage.ErrNotSupported.
func (l *Lab) EnableVersioning(ctx context.Context) (string, error) {
	v, ok := l.store.(storage.Versioned)
	if !ok {
		return "", storage.ErrNotSupported
	}
	var status string
	err := l.stats.Time(ctx, "enable_versioning", func(ctx context.Context) error {
		if err := v.EnableVersioning(ctx); err != nil {
			return errors.NewStorageError(errors.CodeUploadFailed, "enable versioning", err)
		}
		var err error
		status, err = v.VersioningStatus(ctx)
		if err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, "versioning status", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	l.logger.WithField("status", status).Info("versioning configured")
	return status, nil
}

// Reupload uploads item again and returns every version of its key, newest
// first. Without versioning support only the upload happens.
func (l *Lab) Reupload(ctx context.Context, item PlanItem) ([]storage.ObjectInfo, error) {
	var versions []storage.ObjectInfo
	err := l.stats.Time(ctx, "reupload", func(ctx context.Context) error {
		local := filepath.Join(l.dir, item.File)
		if err := l.store.Upload(ctx, local, item.Key, item.ContentType); err != nil {
			return errors.NewStorageError(errors.CodeUploadFailed, "upload "+item.Key, err)
		}
		v, ok := l.store.(storage.Versioned)
		if !ok {
			return nil
		}
		var err error
		versions, err = v.ListVersions(ctx, item.Key)
		if err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, "list versions "+item.Key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		l.logger.WithFields(logrus.Fields{
			"version_id":    v.VersionID,
			"is_latest":     v.IsLatest,
			"size":          v.Size,
			"last_modified": v.LastModified.Format(time.RFC3339),
		}).Info("version")
	}
	return versions, nil
}

// DeleteResult reports whether a deleted key is really gone.
type DeleteResult struct {
	Key  string
	Gone bool
}

// DeleteAndVerify deletes each key and checks it no longer exists.
func (l *Lab) DeleteAndVerify(ctx context.Context, keys ...string) ([]DeleteResult, error) {
	results := make([]DeleteResult, 0, len(keys))
	for _, key := range keys {
		var exists bool
		err := l.stats.Time(ctx, "delete_and_verify", func(ctx context.Context) error {
			if err := l.store.Delete(ctx, key); err != nil {
				return errors.NewStorageError(errors.CodeUploadFailed, "delete "+key, err)
			}
			var err error
			exists, err = l.store.Exists(ctx, key)
			if err != nil {
				return errors.NewStorageError(errors.CodeDownloadFailed, "head "+key, err)
			}
			return nil
		})
		if err != nil {
			return results, err
		}
		results = append(results, DeleteResult{Key: key, Gone: !exists})
		if exists {
			l.logger.WithField("key", key).Warn("object still exists after delete")
		} else {
			l.logger.WithField("key", key).Info("verified deleted")
		}
	}
	return results, nil
}

// PresignAndDownload issues a presigned GET URL for key, fetches it over
// HTTP and saves the body to localPath. It returns the URL and the number
// of bytes written.
func (l *Lab) PresignAndDownload(ctx context.Context, key string, expiry time.Duration, localPath string) (string, int64, error) {
	p, ok := l.store.(storage.Presigner)
	if !ok {
		return "", 0, storage.ErrNotSupported
	}

	var url string
	var n int64
	err := l.stats.Time(ctx, "presign_download", func(ctx context.Context) error {
		var err error
		url, err = p.PresignGet(ctx, key, expiry)
		if err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, "presign "+key, err)
		}
		n, err = l.fetch(ctx, url, localPath)
		return err
	})
	if err != nil {
		return url, n, err
	}
	l.logger.WithFields(logrus.Fields{"key": key, "bytes": n, "path": localPath}).Info("downloaded through presigned url")
	return url, n, nil
}

func (l *Lab) fetch(ctx context.Context, url, localPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.NewStorageError(errors.CodeDownloadFailed, "build request", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, errors.NewStorageError(errors.CodeDownloadFailed, "get presigned url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("presigned url returned %d", resp.StatusCode), nil).
			WithDetails(map[string]interface{}{"status": resp.StatusCode, "body": string(body)})
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, errors.NewInternalError("create "+filepath.Dir(localPath), err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return 0, errors.NewInternalError("create "+localPath, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.NewStorageError(errors.CodeDownloadFailed, "save "+localPath, err)
	}
	return n, nil
}

// MirrorPrefix downloads every object under prefix into dir.
func (l *Lab) MirrorPrefix(ctx context.Context, prefix, dir string, concurrency int) (*storage.MirrorResult, error) {
	var res *storage.MirrorResult
	err := l.stats.Time(ctx, "mirror", func(ctx context.Context) error {
		var err error
		res, err = storage.NewMirror(l.store, concurrency, dir).Prefix(ctx, prefix)
		if err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, "mirror "+prefix, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"prefix":    prefix,
		"downloads": res.Downloads,
		"skipped":   res.Skipped,
		"errors":    len(res.Errors),
	}).Info("prefix mirrored")
	return res, nil
}

func storageReadError(key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return errors.NewStorageError(errors.CodeObjectNotFound, key, err)
	}
	return errors.NewStorageError(errors.CodeDownloadFailed, "get "+key, err)
}
