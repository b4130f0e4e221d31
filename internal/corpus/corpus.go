// Package corpus reads and writes the JSON hand-off files between the crawl
// and load steps: a quote corpus and an author corpus.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Default file names used when configuration leaves them empty.
const (
	DefaultQuotesFile  = "quotes.json"
	DefaultAuthorsFile = "authors.json"
)

// WriteQuotes writes quotes as an indented JSON array.
func WriteQuotes(path string, quotes []crawler.QuoteRecord) error {
	out := make([]crawler.QuoteRecord, len(quotes))
	for i, q := range quotes {
		if q.Tags == nil {
			q.Tags = []string{}
		}
		out[i] = q
	}
	return writeJSON(path, out)
}

// WriteAuthors writes author details as an indented JSON array.
func WriteAuthors(path string, authors []crawler.AuthorRecord) error {
	if authors == nil {
		authors = []crawler.AuthorRecord{}
	}
	return writeJSON(path, authors)
}

// ReadQuotes reads a quote corpus. A missing or malformed file yields a
// *crawler.ValidationError.
func ReadQuotes(path string) ([]crawler.QuoteRecord, error) {
	var quotes []crawler.QuoteRecord
	if err := readJSON(path, &quotes); err != nil {
		return nil, err
	}
	for i := range quotes {
		if quotes[i].Tags == nil {
			quotes[i].Tags = []string{}
		}
	}
	return quotes, nil
}

// ReadAuthors reads an author corpus. A missing or malformed file yields a
// *crawler.ValidationError.
func ReadAuthors(path string) ([]crawler.AuthorRecord, error) {
	var authors []crawler.AuthorRecord
	if err := readJSON(path, &authors); err != nil {
		return nil, err
	}
	return authors, nil
}

// writeJSON replaces path atomically: the document is written to a temp file
// in the same directory and renamed over the target.
func writeJSON(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &crawler.ValidationError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &crawler.ValidationError{Path: path, Err: err}
	}
	return nil
}
