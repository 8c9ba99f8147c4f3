package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func putString(t *testing.T, store Store, key, body string, opts PutOptions) Info {
	t.Helper()
	info, err := store.Put(context.Background(), key, strings.NewReader(body), opts)
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	return info
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

// exerciseStore runs the shared Put/Get/Head/List/Delete contract that every
// driver must satisfy, including create-only Put semantics.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	info := putString(t, store, "reports/sess-1/a.json", `{"ok":true}`, PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"session_id": "sess-1"},
	})
	if info.Key != "reports/sess-1/a.json" || info.Size != int64(len(`{"ok":true}`)) {
		t.Fatalf("put info = %+v", info)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("content type = %q", info.ContentType)
	}

	// Put is create-only.
	if _, err := store.Put(ctx, "reports/sess-1/a.json", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatalf("overwrite accepted by %s driver", store.Driver())
	}

	got, rc, err := store.Get(ctx, "reports/sess-1/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if body := readAll(t, rc); body != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}
	if got.Metadata["session_id"] != "sess-1" {
		t.Fatalf("metadata = %v", got.Metadata)
	}

	head, err := store.Head(ctx, "reports/sess-1/a.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != info.Size {
		t.Fatalf("head size = %d, want %d", head.Size, info.Size)
	}

	putString(t, store, "reports/sess-2/b.json", "{}", PutOptions{ContentType: "application/json"})
	listed, err := store.List(ctx, "reports/sess-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Key != "reports/sess-1/a.json" {
		t.Fatalf("list = %+v", listed)
	}
	all, err := store.List(ctx, "reports/")
	if err != nil || len(all) != 2 {
		t.Fatalf("list all = %+v (%v)", all, err)
	}

	deleted, err := store.Delete(ctx, "reports/sess-1/a.json")
	if err != nil || !deleted {
		t.Fatalf("delete = %v %v", deleted, err)
	}
	// S3 DeleteObject does not report prior existence.
	if store.Driver() != DriverS3 {
		deleted, err = store.Delete(ctx, "reports/sess-1/a.json")
		if err != nil || deleted {
			t.Fatalf("second delete = %v %v", deleted, err)
		}
	}
	if _, _, err := store.Get(ctx, "reports/sess-1/a.json"); err == nil {
		t.Fatalf("deleted blob still readable")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}
	exerciseStore(t, store)
	if _, err := store.PresignURL(context.Background(), "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("memory presign err = %v", err)
	}
}

func TestFilesystemStoreContract(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "   ", "../escape", "a/../../escape", "/abs/path"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestFilesystemPresignAndURL(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	putString(t, store, "reports/x.json", "{}", PutOptions{})
	url, err := store.PresignURL(context.Background(), "reports/x.json", SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://local.blob/") {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(context.Background(), "reports/x.json", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("non-GET presign err = %v", err)
	}
}

func TestFilesystemContentIntegrity(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	payload := bytes.Repeat([]byte("staircore"), 1024)
	info, err := store.Put(context.Background(), "big/report.bin", bytes.NewReader(payload), PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" {
		t.Fatalf("no checksum recorded")
	}
	got, rc, err := store.Get(context.Background(), "big/report.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if body := readAll(t, rc); body != string(payload) {
		t.Fatalf("content corrupted in round trip")
	}
	if got.ETag != info.ETag {
		t.Fatalf("etag drifted: %q vs %q", got.ETag, info.ETag)
	}
}

func TestS3MockContract(t *testing.T) {
	store := NewS3MockForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestS3MockPresign(t *testing.T) {
	store := NewS3MockForTests()
	putString(t, store, "reports/p.json", "{}", PutOptions{ContentType: "application/json"})
	url, err := store.PresignURL(context.Background(), "reports/p.json", SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "reports/p.json") {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(context.Background(), "reports/p.json", SignedURLOptions{Method: "POST"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("non-GET presign err = %v", err)
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	t.Setenv("STAIRCORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("STAIRCORE_BLOB_DRIVER", "fs")
	t.Setenv("STAIRCORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("STAIRCORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}
