package crawler

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"
)

const htmlContentType = "text/html; charset=utf-8"

// Archiver stores every fetched page body under
// <prefix>/<session>/<sha256>.html. A nil Archiver archives nothing.
type Archiver struct {
	blobs  BlobStore
	hasher Hasher
	prefix string
	logger *zap.Logger
}

// NewArchiver wires a blob store and hasher into an Archiver.
func NewArchiver(blobs BlobStore, hasher Hasher, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		blobs:  blobs,
		hasher: hasher,
		prefix: prefix,
		logger: logger.Named("archive"),
	}
}

// Archive writes the response body and returns the blob URI.
func (a *Archiver) Archive(ctx context.Context, sessionID string, resp FetchResponse) (string, error) {
	if a == nil || a.blobs == nil {
		return "", nil
	}
	digest, err := a.hasher.Hash(resp.Body)
	if err != nil {
		return "", fmt.Errorf("hash page: %w", err)
	}
	blobPath := path.Join(a.prefix, sessionID, digest+".html")
	uri, err := a.blobs.PutObject(ctx, blobPath, htmlContentType, bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("store page: %w", err)
	}
	a.logger.Debug("page archived", zap.String("url", resp.URL), zap.String("uri", uri))
	return uri, nil
}

// archiveQuietly archives a page and logs, rather than returns, any failure.
func (a *Archiver) archiveQuietly(ctx context.Context, sessionID string, resp FetchResponse) {
	if a == nil {
		return
	}
	if _, err := a.Archive(ctx, sessionID, resp); err != nil {
		a.logger.Warn("archive failed", zap.String("url", resp.URL), zap.Error(err))
	}
}
