// Package sqlite provides the embedded SQLite implementation of the quotes
// store, backed by the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

const driverName = "sqlite"

// Store implements store.Repository on a single SQLite database.
type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at dsn. Use ":memory:" for an
// ephemeral database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	db, err := sql.Open(driverName, withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// withForeignKeys adds the foreign_keys pragma to dsn so the driver applies
// it to every connection it opens, including replacements.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Migrate creates the tables and indexes when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Begin opens a write transaction.
func (s *Store) Begin(ctx context.Context) (store.LoadTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &loadTx{tx: tx}, nil
}

// ListQuotes returns every quote with its author and tags.
func (s *Store) ListQuotes(ctx context.Context) ([]store.Quote, error) {
	return s.queryQuotes(ctx, "")
}

// SearchQuotesByAuthor returns quotes whose author name contains substring,
// ignoring case.
func (s *Store) SearchQuotesByAuthor(ctx context.Context, substring string) ([]store.Quote, error) {
	return s.queryQuotes(ctx, whereAuthorLike, store.LikePattern(substring))
}

// SearchQuotesByTag returns quotes carrying at least one tag whose name
// contains substring, ignoring case. Each result lists all of its tags.
func (s *Store) SearchQuotesByTag(ctx context.Context, substring string) ([]store.Quote, error) {
	return s.queryQuotes(ctx, whereTagLike, store.LikePattern(substring))
}

func (s *Store) queryQuotes(ctx context.Context, where string, args ...any) ([]store.Quote, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(quoteViewQuery, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	quotes := []store.Quote{}
	for rows.Next() {
		var (
			q      store.Quote
			joined string
		)
		if err := rows.Scan(&q.ID, &q.Text,
			&q.Author.Name, &q.Author.BornDate, &q.Author.BornLocation, &q.Author.Description,
			&joined); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Tags = store.SplitTags(joined)
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return quotes, nil
}

// ListAuthors returns every author ordered by name.
func (s *Store) ListAuthors(ctx context.Context) ([]store.Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(born_date, ''), COALESCE(born_location, ''), COALESCE(description, '')
		FROM authors
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	authors := []store.Author{}
	for rows.Next() {
		var a store.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.BornDate, &a.BornLocation, &a.Description); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	return authors, nil
}

// QuoteCountsByAuthor counts quotes per author, including authors with none,
// highest count first.
func (s *Store) QuoteCountsByAuthor(ctx context.Context) ([]store.AuthorQuoteCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.name, COUNT(q.id) AS quotes_count
		FROM authors a
		LEFT JOIN quotes q ON a.id = q.author_id
		GROUP BY a.id, a.name
		ORDER BY quotes_count DESC, a.name`)
	if err != nil {
		return nil, fmt.Errorf("query author counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	counts := []store.AuthorQuoteCount{}
	for rows.Next() {
		var c store.AuthorQuoteCount
		if err := rows.Scan(&c.Author, &c.QuotesCount); err != nil {
			return nil, fmt.Errorf("scan author count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate author counts: %w", err)
	}
	return counts, nil
}

// TopTags returns the limit most used tags, most used first.
func (s *Store) TopTags(ctx context.Context, limit int) ([]store.TagUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, COUNT(qt.quote_id) AS usage_count
		FROM tags t
		LEFT JOIN quote_tags qt ON t.id = qt.tag_id
		GROUP BY t.id, t.name
		ORDER BY usage_count DESC, t.name
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top tags: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	tags := []store.TagUsage{}
	for rows.Next() {
		var u store.TagUsage
		if err := rows.Scan(&u.Name, &u.UsageCount); err != nil {
			return nil, fmt.Errorf("scan tag usage: %w", err)
		}
		tags = append(tags, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top tags: %w", err)
	}
	return tags, nil
}

// Totals counts the rows of each entity table.
func (s *Store) Totals(ctx context.Context) (store.Totals, error) {
	var t store.Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM authors), (SELECT COUNT(*) FROM quotes), (SELECT COUNT(*) FROM tags)`).
		Scan(&t.Authors, &t.Quotes, &t.Tags)
	if err != nil {
		return store.Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}
