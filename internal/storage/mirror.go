package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mirror copies every object under a prefix into a local directory, keeping
// the key layout, with bounded parallelism.
type Mirror struct {
	storage     ObjectStorage
	concurrency int
	dir         string
}

// MirrorResult contains the outcome of a mirror run.
type MirrorResult struct {
	LocalPaths map[string]string
	Errors     map[string]error
	// Skipped counts objects already present locally with the same size.
	Skipped   int
	Downloads int
}

// NewMirror creates a mirror into dir running at most concurrency downloads
// at once.
func NewMirror(storage ObjectStorage, concurrency int, dir string) *Mirror {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Mirror{
		storage:     storage,
		concurrency: concurrency,
		dir:         dir,
	}
}

// Prefix mirrors all objects whose key starts with prefix. Per-object
// failures are collected in the result; only a listing failure is returned
// as an error.
func (m *Mirror) Prefix(ctx context.Context, prefix string) (*MirrorResult, error) {
	objects, err := m.storage.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	result := &MirrorResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}

	var queue []ObjectInfo
	for _, obj := range objects {
		local, err := m.localPath(obj.Key)
		if err != nil {
			result.Errors[obj.Key] = err
			continue
		}
		if info, err := os.Stat(local); err == nil && info.Size() == obj.Size {
			result.LocalPaths[obj.Key] = local
			result.Skipped++
			continue
		}
		queue = append(queue, obj)
	}

	sem := semaphore.NewWeighted(int64(m.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, obj := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[obj.Key] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		local, _ := m.localPath(obj.Key)
		wg.Add(1)
		go func(key, local string) {
			defer sem.Release(1)
			defer wg.Done()

			if err := m.storage.Download(ctx, key, local); err != nil {
				mu.Lock()
				result.Errors[key] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.LocalPaths[key] = local
			result.Downloads++
			mu.Unlock()
		}(obj.Key, local)
	}

	wg.Wait()
	return result, nil
}

// localPath maps a key under the mirror directory, rejecting keys that would
// escape it.
func (m *Mirror) localPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes the mirror directory", key)
	}
	return filepath.Join(m.dir, clean), nil
}
