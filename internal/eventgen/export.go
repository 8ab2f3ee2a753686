package eventgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/storage"
	"github.com/storelabs/storelabs/pkg/types"
)

// ExportResult describes one exported dataset.
type ExportResult struct {
	RunID      string
	Key        string
	Events     int
	RawBytes   int
	StoredSize int
}

// Exporter uploads generated datasets to object storage under
// events/<run-id>/events.csv, snappy-framed as events.csv.sz when Compress
// is set.
type Exporter struct {
	Storage  storage.ObjectStorage
	Compress bool
	Logger   logrus.FieldLogger
}

// ObjectKey returns the object key for a run.
func ObjectKey(runID string, compressed bool) string {
	key := fmt.Sprintf("events/%s/events.csv", runID)
	if compressed {
		key += ".sz"
	}
	return key
}

// Export encodes events and uploads them under a fresh run id.
func (x *Exporter) Export(ctx context.Context, events []types.Event) (*ExportResult, error) {
	var raw bytes.Buffer
	if err := WriteAll(&raw, events); err != nil {
		return nil, errors.NewInternalError("encode events", err)
	}

	payload := raw.Bytes()
	if x.Compress {
		var err error
		if payload, err = compress(payload); err != nil {
			return nil, errors.NewInternalError("compress events", err)
		}
	}

	runID := uuid.NewString()
	key := ObjectKey(runID, x.Compress)
	if err := x.Storage.Put(ctx, key, payload, storage.ContentTypeFor(key)); err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed, "upload "+key, err)
	}

	res := &ExportResult{
		RunID:      runID,
		Key:        key,
		Events:     len(events),
		RawBytes:   raw.Len(),
		StoredSize: len(payload),
	}
	if x.Logger != nil {
		x.Logger.WithFields(logrus.Fields{
			"run_id": runID,
			"key":    key,
			"events": res.Events,
			"raw":    res.RawBytes,
			"stored": res.StoredSize,
		}).Info("exported events")
	}
	return res, nil
}

// Import downloads and decodes a dataset previously written by Export. The
// key suffix selects decompression.
func Import(ctx context.Context, store storage.ObjectStorage, key string) ([]types.Event, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if err == storage.ErrObjectNotFound {
			return nil, errors.NewStorageError(errors.CodeObjectNotFound, key, err)
		}
		return nil, errors.NewStorageError(errors.CodeDownloadFailed, "download "+key, err)
	}

	var r io.Reader = bytes.NewReader(data)
	if strings.HasSuffix(key, ".sz") {
		r = snappy.NewReader(r)
	}
	return ReadAll(r)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
