package eventgen

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/storage"
)

func TestExporter_RoundTrip(t *testing.T) {
	events, err := generate(1, 500, 20, 50, nil)
	require.NoError(t, err)

	for _, compress := range []bool{false, true} {
		store, err := storage.NewLocalStorage(t.TempDir())
		require.NoError(t, err)

		logger, hook := test.NewNullLogger()
		x := &Exporter{Storage: store, Compress: compress, Logger: logger}

		res, err := x.Export(context.Background(), events)
		require.NoError(t, err)

		_, err = uuid.Parse(res.RunID)
		assert.NoError(t, err, "run id should be a UUID")
		assert.Equal(t, ObjectKey(res.RunID, compress), res.Key)
		assert.True(t, strings.HasPrefix(res.Key, "events/"+res.RunID+"/events.csv"))
		assert.Equal(t, 500, res.Events)
		if compress {
			assert.True(t, strings.HasSuffix(res.Key, ".sz"))
			assert.Less(t, res.StoredSize, res.RawBytes, "snappy should shrink CSV")
		} else {
			assert.Equal(t, res.RawBytes, res.StoredSize)
		}

		require.Len(t, hook.Entries, 1)
		assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
		assert.Equal(t, res.RunID, hook.LastEntry().Data["run_id"])

		decoded, err := Import(context.Background(), store, res.Key)
		require.NoError(t, err)
		assert.Equal(t, events, decoded)
	}
}

func TestExport_ByteIdenticalAcrossRuns(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	x := &Exporter{Storage: store}

	var keys []string
	for i := 0; i < 2; i++ {
		events, err := generate(2024, 300, 10, 10, nil)
		require.NoError(t, err)
		res, err := x.Export(context.Background(), events)
		require.NoError(t, err)
		keys = append(keys, res.Key)
	}
	require.NotEqual(t, keys[0], keys[1], "each export gets its own run id")

	a, err := store.Get(context.Background(), keys[0])
	require.NoError(t, err)
	b, err := store.Get(context.Background(), keys[1])
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestImport_MissingObject(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = Import(context.Background(), store, "events/none/events.csv")
	require.Error(t, err)
	assert.Equal(t, errors.CodeObjectNotFound, errors.GetCode(err))
}
