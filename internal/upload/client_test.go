package upload

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeStore struct {
	putErr  error
	put     map[string]string
	types   map[string]string
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{put: map[string]string{}, types: map[string]string{}}
}

func (f *fakeStore) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.put[bucket+"/"+object] = filePath
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func (f *fakeStore) RemoveObject(_ context.Context, bucket, object string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, bucket+"/"+object)
	return nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestMirrorUploadsAndRemovesStale(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "beach_THUMB_2.png")
	writePNG(t, file)

	store := newFakeStore()
	client := NewWithStore(store, "media")

	if err := client.Mirror(context.Background(), "summer", file, []string{"beach_THUMB_1.png"}); err != nil {
		t.Fatalf("Mirror returned error: %v", err)
	}
	if got := store.put["media/summer/thumbnails/beach_THUMB_2.png"]; got != file {
		t.Fatalf("object not uploaded from %s: %v", file, store.put)
	}
	if got := store.types["summer/thumbnails/beach_THUMB_2.png"]; got != "image/png" {
		t.Fatalf("content type = %q, want image/png", got)
	}
	if len(store.removed) != 1 || store.removed[0] != "media/summer/thumbnails/beach_THUMB_1.png" {
		t.Fatalf("unexpected removals: %v", store.removed)
	}
}

func TestMirrorPropagatesErrors(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "thumb.png")
	writePNG(t, file)

	expected := errors.New("upload failed")
	store := newFakeStore()
	store.putErr = expected
	client := NewWithStore(store, "media")

	if err := client.Mirror(context.Background(), "summer", file, []string{"old.png"}); !errors.Is(err, expected) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if len(store.removed) != 0 {
		t.Fatalf("stale objects removed after failed upload: %v", store.removed)
	}
}

func TestMirrorMissingFile(t *testing.T) {
	client := NewWithStore(newFakeStore(), "media")
	if err := client.Mirror(context.Background(), "summer", "/not/exist.png", nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
