package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage_UploadDownload(t *testing.T) {
	// Create temp directories
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	// Create a test file
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "marks.csv")
	content := []byte("student_id,marks,attendance\n2023001,85,90\n")
	if err := os.WriteFile(srcPath, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()

	// Test Upload
	objectPath := "datasets/CS101/marks.csv"
	if err := storage.Upload(ctx, srcPath, objectPath, "text/csv"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Test Exists
	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	// Test Download
	dstPath := filepath.Join(srcDir, "nested", "downloaded.csv")
	if err := storage.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	// Test Delete
	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_PutGet(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	key := "announcements/2025-09-25.txt"
	if err := storage.Put(ctx, key, []byte("first"), "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := storage.Put(ctx, key, []byte("second"), "text/plain"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := storage.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want overwritten content", got)
	}
}

func TestLocalStorage_MissingObject(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	if _, err := storage.Get(ctx, "nope"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get: expected ErrObjectNotFound, got %v", err)
	}
	if err := storage.Download(ctx, "nope", filepath.Join(t.TempDir(), "x")); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Download: expected ErrObjectNotFound, got %v", err)
	}
	// S3 semantics: deleting a missing object succeeds.
	if err := storage.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete of missing object should succeed, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	keys := []string{
		"courses/CS202/weeks/week02/slides.pdf",
		"courses/CS202/weeks/week01/slides.pdf",
		"courses/CS101/weeks/week01/slides.pdf",
		"announcements/2025-09-26.txt",
	}
	for _, k := range keys {
		if err := storage.Put(ctx, k, []byte(k), ContentTypeFor(k)); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	objects, err := storage.ListObjects(ctx, "courses/CS202/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d: %v", len(objects), objects)
	}
	if objects[0].Key != "courses/CS202/weeks/week01/slides.pdf" {
		t.Errorf("objects should be sorted by key, got %s first", objects[0].Key)
	}
	if objects[0].ContentType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", objects[0].ContentType)
	}
	if objects[1].Size != int64(len(keys[0])) {
		t.Errorf("size = %d, want %d", objects[1].Size, len(keys[0]))
	}

	// A non-directory prefix matches by string prefix, as in S3.
	objects, err = storage.ListObjects(ctx, "courses/CS")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 3 {
		t.Errorf("expected 3 objects for partial prefix, got %d", len(objects))
	}

	objects, err = storage.ListObjects(ctx, "missing/")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected empty list, got %v", objects)
	}
}

func TestLocalStorage_Versioning(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()
	key := "courses/CS101/weeks/week01/slides.pdf"

	// Writes before versioning is enabled are not kept.
	if err := storage.Put(ctx, key, []byte("v0"), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	status, err := storage.VersioningStatus(ctx)
	if err != nil || status != "" {
		t.Fatalf("expected unset status, got %q (%v)", status, err)
	}

	if err := storage.EnableVersioning(ctx); err != nil {
		t.Fatalf("EnableVersioning failed: %v", err)
	}
	status, _ = storage.VersioningStatus(ctx)
	if status != "Enabled" {
		t.Errorf("status = %q, want Enabled", status)
	}

	for _, body := range []string{"v1", "v2-longer"} {
		if err := storage.Put(ctx, key, []byte(body), "application/pdf"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	versions, err := storage.ListVersions(ctx, key)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if !versions[0].IsLatest || versions[1].IsLatest {
		t.Errorf("only the newest version should be latest: %+v", versions)
	}
	if versions[0].Size != int64(len("v2-longer")) {
		t.Errorf("newest version size = %d", versions[0].Size)
	}
	if versions[0].VersionID == versions[1].VersionID {
		t.Error("version ids should be distinct")
	}

	// Version copies are not listed as objects.
	objects, err := storage.ListObjects(ctx, "")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 1 {
		t.Errorf("expected only the current object, got %v", objects)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	versions, _ = storage.ListVersions(ctx, key)
	if len(versions) != 2 || versions[0].IsLatest {
		t.Errorf("versions should survive delete without a latest: %+v", versions)
	}
}

func TestLocalStorage_Clear(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	if err := storage.Put(ctx, "a/b.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := storage.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	objects, err := storage.ListObjects(ctx, "")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected empty storage after Clear, got %v", objects)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"courses/CS101/weeks/week01/slides.pdf": "application/pdf",
		"datasets/CS101/marks.csv":              "text/csv",
		"announcements/2025-09-25.txt":          "text/plain",
		"exports/books.JSON":                    "application/json",
		"events/run/events.csv.sz":              "application/x-snappy-framed",
		"README":                                "application/octet-stream",
	}
	for key, want := range tests {
		if got := ContentTypeFor(key); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", key, got, want)
		}
	}
}
