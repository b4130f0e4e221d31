// Package gcs archives fetched pages to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// Config names the target bucket.
type Config struct {
	Bucket string
}

// BlobStore writes page snapshots to one bucket. Objects are keyed by content
// hash, so an object that already exists is left untouched.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New wraps an existing client; the caller keeps ownership of it.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("gcs: storage client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject uploads body to path and returns its gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error) {
	key := objectKey(path)
	if key == "" {
		return "", errors.New("gcs: object path is required")
	}
	uri := "gs://" + s.bucket + "/" + key

	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	// Pages are small; upload them in a single request.
	w.ChunkSize = 0

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", uri, err)
	}
	if err := w.Close(); err != nil {
		if alreadyStored(err) {
			return uri, nil
		}
		return "", fmt.Errorf("finalize %s: %w", uri, err)
	}
	return uri, nil
}

func objectKey(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

func alreadyStored(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
