// Package postgres provides the Postgres implementation of the quotes store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements store.Repository on Postgres.
type Store struct {
	pool pool
}

var _ store.Repository = (*Store)(nil)

// New connects a pgx pool using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Migrate creates the tables and indexes when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Begin opens a write transaction.
func (s *Store) Begin(ctx context.Context) (store.LoadTx, error) {
	tx, err := s.pool.Begin(ctx)
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
// contains substring, ignoring case.
func (s *Store) SearchQuotesByTag(ctx context.Context, substring string) ([]store.Quote, error) {
	return s.queryQuotes(ctx, whereTagLike, store.LikePattern(substring))
}

func (s *Store) queryQuotes(ctx context.Context, where string, args ...any) ([]store.Quote, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(quoteViewQuery, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

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
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(born_date, ''), COALESCE(born_location, ''), COALESCE(description, '')
		FROM authors
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

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

// QuoteCountsByAuthor counts quotes per author, including authors with none.
func (s *Store) QuoteCountsByAuthor(ctx context.Context) ([]store.AuthorQuoteCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.name, COUNT(q.id) AS quotes_count
		FROM authors a
		LEFT JOIN quotes q ON a.id = q.author_id
		GROUP BY a.id, a.name
		ORDER BY quotes_count DESC, a.name`)
	if err != nil {
		return nil, fmt.Errorf("query author counts: %w", err)
	}
	defer rows.Close()

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

// TopTags returns the limit most used tags.
func (s *Store) TopTags(ctx context.Context, limit int) ([]store.TagUsage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.name, COUNT(qt.quote_id) AS usage_count
		FROM tags t
		LEFT JOIN quote_tags qt ON t.id = qt.tag_id
		GROUP BY t.id, t.name
		ORDER BY usage_count DESC, t.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top tags: %w", err)
	}
	defer rows.Close()

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
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM authors), (SELECT COUNT(*) FROM quotes), (SELECT COUNT(*) FROM tags)`).
		Scan(&t.Authors, &t.Quotes, &t.Tags)
	if err != nil {
		return store.Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}
