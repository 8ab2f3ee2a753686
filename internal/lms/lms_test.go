package lms

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/storage"
)

// presignedLocal serves LocalStorage objects over HTTP so presigned
// downloads can run without a real bucket.
type presignedLocal struct {
	*storage.LocalStorage
	server *httptest.Server
}

func newPresignedLocal(t *testing.T) *presignedLocal {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	p := &presignedLocal{LocalStorage: local}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("X-Amz-Expires") == "" {
			http.Error(w, "missing signature", http.StatusForbidden)
			return
		}
		data, err := local.Get(r.Context(), strings.TrimPrefix(r.URL.Path, "/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *presignedLocal) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return p.server.URL + "/" + key + "?X-Amz-Expires=" + strconv.Itoa(int(expiry.Seconds())), nil
}

func TestPlan_Default(t *testing.T) {
	plan := DefaultPlan()
	require.Len(t, plan, 12)

	want := []string{
		"courses/CS101/weeks/week01/slides.pdf",
		"courses/CS101/weeks/week02/slides.pdf",
		"datasets/CS101/marks.csv",
		"announcements/2025-09-25.txt",
		"submissions/CS101/assignment1/2023001/assignment.pdf",
		"submissions/CS101/assignment1/2023002/assignment.pdf",
		"courses/CS202/weeks/week01/slides.pdf",
		"courses/CS202/weeks/week02/slides.pdf",
		"datasets/CS202/marks.csv",
		"announcements/2025-09-26.txt",
		"submissions/CS202/assignment1/2023010/assignment.pdf",
		"submissions/CS202/assignment1/2023011/assignment.pdf",
	}
	files := make(map[string]bool)
	for i, item := range plan {
		assert.Equal(t, want[i], item.Key)
		assert.Equal(t, storage.ContentTypeFor(item.Key), item.ContentType, item.Key)
		assert.False(t, files[item.File], "duplicate file %s", item.File)
		files[item.File] = true
	}
	assert.True(t, files["sub_CS202_2023011_assignment1.pdf"])
	assert.True(t, files["announcements-2025-09-26.txt"])
}

func TestWriteDummyFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "DummyData")
	paths, err := WriteDummyFiles(dir, DefaultPlan())
	require.NoError(t, err)
	require.Len(t, paths, 12)

	pdf, err := os.ReadFile(filepath.Join(dir, "slides_CS101_week1.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	marks, err := os.ReadFile(filepath.Join(dir, "marks_CS101.csv"))
	require.NoError(t, err)
	assert.Equal(t, "student_id,marks,attendance\r\n2023001,85,90\r\n2023002,78,100\r\n", string(marks))

	ann, err := os.ReadFile(filepath.Join(dir, "announcements-2025-09-26.txt"))
	require.NoError(t, err)
	assert.Equal(t, "📢 CS202: Midterm schedule will be announced soon\n", string(ann))
}

func TestPlanItem_ContentWithoutBuilder(t *testing.T) {
	_, err := PlanItem{File: "x.bin"}.Content()
	assert.Equal(t, errors.CodeUnexpected, errors.GetCode(err))
}

func TestLab_Run(t *testing.T) {
	ctx := context.Background()
	store := newPresignedLocal(t)
	logger, _ := test.NewNullLogger()
	lab := NewLab(store, t.TempDir(), logger)

	res, err := lab.Run(ctx, DefaultPlan(), DefaultScenario())
	require.NoError(t, err)

	assert.Equal(t, 12, res.Uploaded)
	require.Len(t, res.Listed, 1)
	assert.Equal(t, "courses/CS202/weeks/week02/slides.pdf", res.Listed[0].Key)
	assert.Equal(t, UpdatedAnnouncement, res.Announcement)

	assert.Equal(t, "Enabled", res.VersioningStatus)
	require.Len(t, res.Versions, 1)
	assert.True(t, res.Versions[0].IsLatest)
	assert.NotEmpty(t, res.Versions[0].VersionID)

	require.Len(t, res.Deleted, 2)
	for _, d := range res.Deleted {
		assert.True(t, d.Gone, d.Key)
	}
	exists, err := store.Exists(ctx, "datasets/CS202/marks.csv")
	require.NoError(t, err)
	assert.True(t, exists, "untouched objects stay")

	assert.Contains(t, res.PresignedURL, "submissions/CS101/assignment1/2023001/assignment.pdf")
	want, err := os.ReadFile(filepath.Join(lab.Dir(), "sub_CS101_2023001_assignment1.pdf"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(lab.Dir(), "download_using_url.pdf"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), res.DownloadedBytes)
	assert.Equal(t, want, got)

	require.NotNil(t, res.Mirror)
	assert.Equal(t, 4, res.Mirror.Downloads)
	assert.Empty(t, res.Mirror.Errors)

	for _, op := range []string{"upload_all", "list", "update_announcement", "enable_versioning", "reupload", "delete_and_verify", "presign_download", "mirror"} {
		s, ok := lab.Stats().Get(op)
		if assert.True(t, ok, op) {
			assert.Zero(t, s.Errors, op)
		}
	}
	s, _ := lab.Stats().Get("delete_and_verify")
	assert.Equal(t, int64(2), s.Count)
}

func TestLab_RunWithoutPresigner(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	lab := NewLab(store, t.TempDir(), logger)

	res, err := lab.Run(context.Background(), DefaultPlan(), DefaultScenario())
	require.NoError(t, err)
	assert.Empty(t, res.PresignedURL)
	assert.Zero(t, res.DownloadedBytes)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "backend does not support presigned urls" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestLab_PresignMissingObject(t *testing.T) {
	store := newPresignedLocal(t)
	logger, _ := test.NewNullLogger()
	lab := NewLab(store, t.TempDir(), logger)

	_, _, err := lab.PresignAndDownload(context.Background(), "submissions/none.pdf", time.Hour, filepath.Join(lab.Dir(), "x.pdf"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDownloadFailed, errors.GetCode(err))
	_, statErr := os.Stat(filepath.Join(lab.Dir(), "x.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLab_UploadMissingFile(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	lab := NewLab(store, t.TempDir(), nil)

	n, err := lab.UploadAll(context.Background(), DefaultPlan())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, errors.CodeUploadFailed, errors.GetCode(err))
	assert.True(t, errors.Is(err, storage.ErrUploadFailed))
}
