package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCS reads and writes objects in Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS backend with its own storage client.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: creating storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Read downloads an object's bytes.
func (g *GCS) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCS.Read: opening object %s/%s: %w", bucket, key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCS.Read: reading bytes: %w", err)
	}
	return data, nil
}

// Upload writes r to bucket/object and returns its gs:// URI.
func (g *GCS) Upload(ctx context.Context, bucket, object string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("GCS.Upload: copying to writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("GCS.Upload: finalizing upload: %w", err)
	}
	return Location{Scheme: SchemeGCS, Bucket: bucket, Key: object}.String(), nil
}
