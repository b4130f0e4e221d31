// Package query answers read-only questions about the loaded quotes and
// builds the JSON export snapshot.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// Defaults applied when callers leave limits or paths empty.
const (
	DefaultTopTags    = 10
	DefaultExportFile = "exported_quotes_data.json"
)

// Statistics is the aggregate section of an export snapshot.
type Statistics struct {
	QuotesByAuthor []store.AuthorQuoteCount `json:"quotes_by_author"`
	TopTags        []store.TagUsage         `json:"top_tags"`
}

// Snapshot is the full export document.
type Snapshot struct {
	Quotes     []store.Quote  `json:"quotes"`
	Authors    []store.Author `json:"authors"`
	Statistics Statistics     `json:"statistics"`
	ExportDate string         `json:"export_date"`
}

// Engine runs queries against a store.Reader.
type Engine struct {
	reader  store.Reader
	clock   crawler.Clock
	topTags int
}

// New constructs an Engine. topTags is the export's tag limit; zero or less
// means DefaultTopTags.
func New(reader store.Reader, clock crawler.Clock, topTags int) *Engine {
	if topTags <= 0 {
		topTags = DefaultTopTags
	}
	return &Engine{reader: reader, clock: clock, topTags: topTags}
}

// ListQuotes returns every quote with author detail and tags.
func (e *Engine) ListQuotes(ctx context.Context) ([]store.Quote, error) {
	return e.reader.ListQuotes(ctx)
}

// SearchByAuthor returns quotes whose author name contains substring,
// ignoring case.
func (e *Engine) SearchByAuthor(ctx context.Context, substring string) ([]store.Quote, error) {
	return e.reader.SearchQuotesByAuthor(ctx, substring)
}

// SearchByTag returns quotes with a tag whose name contains substring,
// ignoring case.
func (e *Engine) SearchByTag(ctx context.Context, substring string) ([]store.Quote, error) {
	return e.reader.SearchQuotesByTag(ctx, substring)
}

// QuoteCountsByAuthor counts quotes per stored author.
func (e *Engine) QuoteCountsByAuthor(ctx context.Context) ([]store.AuthorQuoteCount, error) {
	return e.reader.QuoteCountsByAuthor(ctx)
}

// TopTags returns the n most used tags. n <= 0 means DefaultTopTags.
func (e *Engine) TopTags(ctx context.Context, n int) ([]store.TagUsage, error) {
	if n <= 0 {
		n = DefaultTopTags
	}
	return e.reader.TopTags(ctx, n)
}

// ListAuthors returns every author ordered by name.
func (e *Engine) ListAuthors(ctx context.Context) ([]store.Author, error) {
	return e.reader.ListAuthors(ctx)
}

// Totals counts stored authors, quotes and tags.
func (e *Engine) Totals(ctx context.Context) (store.Totals, error) {
	return e.reader.Totals(ctx)
}

// Export assembles a snapshot of the whole store.
func (e *Engine) Export(ctx context.Context) (Snapshot, error) {
	quotes, err := e.reader.ListQuotes(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export quotes: %w", err)
	}
	authors, err := e.reader.ListAuthors(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export authors: %w", err)
	}
	counts, err := e.reader.QuoteCountsByAuthor(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export author counts: %w", err)
	}
	tags, err := e.reader.TopTags(ctx, e.topTags)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export top tags: %w", err)
	}
	return Snapshot{
		Quotes:  nonNil(quotes),
		Authors: nonNil(authors),
		Statistics: Statistics{
			QuotesByAuthor: nonNil(counts),
			TopTags:        nonNil(tags),
		},
		ExportDate: e.clock.Now().Format(time.RFC3339),
	}, nil
}

// WriteSnapshot exports the store to path as indented JSON and returns the
// snapshot written. An empty path means DefaultExportFile.
func (e *Engine) WriteSnapshot(ctx context.Context, path string) (Snapshot, error) {
	if path == "" {
		path = DefaultExportFile
	}
	snap, err := e.Export(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Snapshot{}, fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // world-readable export
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	return snap, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
