package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type loadTx struct {
	tx pgx.Tx
}

func (t *loadTx) Row(ctx context.Context, fn func() error) error {
	if _, err := t.tx.Exec(ctx, "SAVEPOINT load_row"); err != nil {
		return fmt.Errorf("open savepoint: %w", err)
	}
	if err := fn(); err != nil {
		// A failed statement aborts the transaction until rolled back to the savepoint.
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT load_row"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		if _, relErr := t.tx.Exec(ctx, "RELEASE SAVEPOINT load_row"); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint: %w", relErr))
		}
		return err
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT load_row"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *loadTx) UpsertAuthor(ctx context.Context, a store.Author) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO authors (name, born_date, born_location, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			born_date = EXCLUDED.born_date,
			born_location = EXCLUDED.born_location,
			description = EXCLUDED.description`,
		a.Name, a.BornDate, a.BornLocation, a.Description)
	if err != nil {
		return fmt.Errorf("upsert author: %w", err)
	}
	return nil
}

func (t *loadTx) AuthorID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, "SELECT id FROM authors WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup author: %w", err)
	}
	return id, nil
}

func (t *loadTx) QuoteExists(ctx context.Context, text string, authorID *int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM quotes WHERE text = $1 AND author_id IS NOT DISTINCT FROM $2)",
		text, authorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quote: %w", err)
	}
	return exists, nil
}

func (t *loadTx) InsertQuote(ctx context.Context, text string, authorID *int64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		"INSERT INTO quotes (text, author_id) VALUES ($1, $2) RETURNING id", text, authorID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quote: %w", err)
	}
	return id, nil
}

func (t *loadTx) EnsureTag(ctx context.Context, name string) (int64, bool, error) {
	tag, err := t.tx.Exec(ctx, "INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name)
	if err != nil {
		return 0, false, fmt.Errorf("insert tag: %w", err)
	}
	var id int64
	if err := t.tx.QueryRow(ctx, "SELECT id FROM tags WHERE name = $1", name).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("lookup tag: %w", err)
	}
	return id, tag.RowsAffected() > 0, nil
}

func (t *loadTx) LinkTag(ctx context.Context, quoteID, tagID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		"INSERT INTO quote_tags (quote_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", quoteID, tagID)
	if err != nil {
		return false, fmt.Errorf("link tag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *loadTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *loadTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
