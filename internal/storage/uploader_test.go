package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestObjectKeyDeterministic(t *testing.T) {
	key := ObjectKey(12, 7, 2, 3)
	want := "avatar-videos/12/7/2/12_7_level2_3.mp4"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}
	if key != ObjectKey(12, 7, 2, 3) {
		t.Error("key must be deterministic")
	}
	if key == ObjectKey(12, 7, 2, 4) {
		t.Error("different order must produce a different key")
	}
}

func TestPublicURL(t *testing.T) {
	url := PublicURL("speakcoach-media", "avatar-videos/1/2/2/1_2_level2_1.mp4")
	want := "https://storage.googleapis.com/speakcoach-media/avatar-videos/1/2/2/1_2_level2_1.mp4"
	if url != want {
		t.Errorf("got %q, want %q", url, want)
	}
}

func TestDownloadWritesScratchFile(t *testing.T) {
	payload := []byte("fake mp4 bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	u := &Uploader{
		httpClient: &http.Client{Timeout: time.Second},
		scratchDir: t.TempDir(),
	}

	path, err := u.download(context.Background(), server.URL+"/v.mp4")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer os.Remove(path)

	if filepath.Ext(path) != ".mp4" {
		t.Errorf("scratch file should keep the mp4 extension: %s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("scratch file unreadable: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("scratch contents differ from source")
	}
}

func TestDownloadRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	u := &Uploader{
		httpClient: &http.Client{Timeout: time.Second},
		scratchDir: t.TempDir(),
	}

	_, err := u.download(context.Background(), server.URL+"/v.mp4")
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if upErr.Stage != "download" {
		t.Errorf("expected download stage, got %q", upErr.Stage)
	}

	entries, err := os.ReadDir(u.scratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed download must not leave scratch files, found %d", len(entries))
	}
}

func TestDownloadUniqueScratchNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	u := &Uploader{
		httpClient: &http.Client{Timeout: time.Second},
		scratchDir: t.TempDir(),
	}

	p1, err := u.download(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := u.download(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(p1)
	defer os.Remove(p2)

	if p1 == p2 {
		t.Error("concurrent downloads must not collide on scratch names")
	}
}
