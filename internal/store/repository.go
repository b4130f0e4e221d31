package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TagSeparator joins tag names inside aggregated query results. It cannot
// occur in scraped tag text.
const TagSeparator = "\x1f"

// Author models one row of the authors table.
type Author struct {
	// ID is the surrogate key; zero for rows not yet stored.
	ID int64 `json:"id"`
	// Name is the natural key.
	Name         string `json:"name"`
	BornDate     string `json:"born_date"`
	BornLocation string `json:"born_location"`
	Description  string `json:"description"`
}

// QuoteAuthor is the author detail embedded in a quote view. All fields are
// empty when the quote has no author row.
type QuoteAuthor struct {
	Name         string `json:"name"`
	BornDate     string `json:"born_date"`
	BornLocation string `json:"born_location"`
	Description  string `json:"description"`
}

// Quote is the joined view of a quote, its author and its tags.
type Quote struct {
	ID     int64       `json:"id"`
	Text   string      `json:"text"`
	Author QuoteAuthor `json:"author"`
	Tags   []string    `json:"tags"`
}

// AuthorQuoteCount is one row of the per-author quote statistics.
type AuthorQuoteCount struct {
	Author      string `json:"author"`
	QuotesCount int    `json:"quotes_count"`
}

// TagUsage is one row of the tag popularity statistics.
type TagUsage struct {
	Name       string `json:"name"`
	UsageCount int    `json:"usage_count"`
}

// Totals holds the row count of each entity table.
type Totals struct {
	Authors int `json:"authors"`
	Quotes  int `json:"quotes"`
	Tags    int `json:"tags"`
}

// Reader exposes the read-only queries used by the query engine.
type Reader interface {
	ListQuotes(ctx context.Context) ([]Quote, error)
	SearchQuotesByAuthor(ctx context.Context, substring string) ([]Quote, error)
	SearchQuotesByTag(ctx context.Context, substring string) ([]Quote, error)
	ListAuthors(ctx context.Context) ([]Author, error)
	QuoteCountsByAuthor(ctx context.Context) ([]AuthorQuoteCount, error)
	TopTags(ctx context.Context, limit int) ([]TagUsage, error)
	Totals(ctx context.Context) (Totals, error)
}

// LoadTx is one open write transaction used by a loader phase. Nothing it
// writes is visible to readers until Commit.
type LoadTx interface {
	// Row runs fn inside a savepoint. If fn fails its writes are undone and
	// the transaction stays usable for the next row.
	Row(ctx context.Context, fn func() error) error
	// UpsertAuthor inserts the author or overwrites the detail of the row
	// with the same name.
	UpsertAuthor(ctx context.Context, author Author) error
	// AuthorID looks up an author by exact name. ErrNotFound when absent.
	AuthorID(ctx context.Context, name string) (int64, error)
	// QuoteExists reports whether a quote with this text and author is stored.
	QuoteExists(ctx context.Context, text string, authorID *int64) (bool, error)
	// InsertQuote always inserts a new quote row and returns its id.
	InsertQuote(ctx context.Context, text string, authorID *int64) (int64, error)
	// EnsureTag returns the id of the named tag, creating it when missing.
	EnsureTag(ctx context.Context, name string) (id int64, created bool, err error)
	// LinkTag associates a quote with a tag; existing links are left alone.
	LinkTag(ctx context.Context, quoteID, tagID int64) (created bool, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is a complete quotes store.
type Repository interface {
	Reader
	// Migrate creates the schema when it does not exist.
	Migrate(ctx context.Context) error
	// Begin opens a write transaction.
	Begin(ctx context.Context) (LoadTx, error)
	Close() error
}

// SplitTags undoes the aggregation of tag names into one column.
func SplitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, TagSeparator)
}

// LikePattern builds a case-insensitive substring pattern for LIKE/ILIKE with
// '\' as the escape character, so the caller's % and _ match literally.
func LikePattern(substring string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(substring)
	return "%" + escaped + "%"
}
