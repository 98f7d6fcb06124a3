package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// UploadError wraps any failure between fetching the rendered video and
// landing it in the bucket. The render pipeline treats it as a per-item
// failure, never a fatal one.
type UploadError struct {
	Stage string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("video upload failed during %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ObjectKey is the deterministic bucket key for a rendered question video.
// Re-rendering the same question overwrites the previous object, so stale
// videos never accumulate.
func ObjectKey(userID, scenarioID int64, level, order int) string {
	return fmt.Sprintf("avatar-videos/%d/%d/%d/%d_%d_level%d_%d.mp4",
		userID, scenarioID, level, userID, scenarioID, level, order)
}

// PublicURL is the stable HTTPS URL for an object in a public-read bucket.
func PublicURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

// Uploader copies provider-hosted render results into our own bucket.
// Provider URLs expire; bucket URLs are the ones that get persisted.
type Uploader struct {
	client     *gcs.Client
	bucket     string
	httpClient *http.Client
	scratchDir string
}

func NewUploader(ctx context.Context) (*Uploader, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is not set")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Uploader{
		client:     client,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		scratchDir: os.TempDir(),
	}, nil
}

func (u *Uploader) Close() error {
	return u.client.Close()
}

// Store downloads the video at videoURL to scratch space, uploads it to the
// bucket under the deterministic key, and returns the public URL. The
// scratch file is removed on every path, success or failure.
func (u *Uploader) Store(ctx context.Context, videoURL string, userID, scenarioID int64, level, order int) (string, error) {
	scratchPath, err := u.download(ctx, videoURL)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(scratchPath); err != nil {
			log.Printf("WARN: [storage] failed to remove scratch file %s: %v", scratchPath, err)
		}
	}()

	key := ObjectKey(userID, scenarioID, level, order)
	if err := u.upload(ctx, scratchPath, key); err != nil {
		return "", err
	}

	return PublicURL(u.bucket, key), nil
}

func (u *Uploader) download(ctx context.Context, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", &UploadError{Stage: "download", Err: err}
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Stage: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{Stage: "download", Err: fmt.Errorf("source returned %d", resp.StatusCode)}
	}

	scratchPath := filepath.Join(u.scratchDir, uuid.NewString()+".mp4")
	f, err := os.Create(scratchPath)
	if err != nil {
		return "", &UploadError{Stage: "scratch", Err: err}
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(scratchPath)
		return "", &UploadError{Stage: "download", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(scratchPath)
		return "", &UploadError{Stage: "scratch", Err: err}
	}

	return scratchPath, nil
}

func (u *Uploader) upload(ctx context.Context, scratchPath, key string) error {
	f, err := os.Open(scratchPath)
	if err != nil {
		return &UploadError{Stage: "upload", Err: err}
	}
	defer f.Close()

	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "video/mp4"
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return &UploadError{Stage: "upload", Err: err}
	}
	if err := w.Close(); err != nil {
		return &UploadError{Stage: "upload", Err: err}
	}

	log.Printf("[storage] uploaded gs://%s/%s", u.bucket, key)
	return nil
}
