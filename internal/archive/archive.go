package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Archiver keeps a copy of every raw document that enters the pipeline.
type Archiver interface {
	// Store uploads data and returns a URI for the stored copy.
	Store(ctx context.Context, jobID, filename, contentType string, data []byte, at time.Time) (string, error)
	Close() error
}

// ObjectName is the bucket path for a document received at the given time.
func ObjectName(at time.Time, jobID, filename string) string {
	at = at.UTC()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("raw/%04d/%02d/%02d/%s%s", at.Year(), int(at.Month()), at.Day(), jobID, ext)
}

// GCS stores documents in a Google Cloud Storage bucket using Application
// Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Store(ctx context.Context, jobID, filename, contentType string, data []byte, at time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := ObjectName(at, jobID, filename)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"job_id":            jobID,
		"original_filename": filename,
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("copy %s to gcs writer: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, name), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// Nop discards documents. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Store(context.Context, string, string, string, []byte, time.Time) (string, error) {
	return "", nil
}

func (Nop) Close() error { return nil }
