package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type loadTx struct {
	tx *sql.Tx
}

func (t *loadTx) Row(ctx context.Context, fn func() error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT load_row"); err != nil {
		return fmt.Errorf("open savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT load_row"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		if _, relErr := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT load_row"); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint: %w", relErr))
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT load_row"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *loadTx) UpsertAuthor(ctx context.Context, a store.Author) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO authors (name, born_date, born_location, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			born_date = excluded.born_date,
			born_location = excluded.born_location,
			description = excluded.description`,
		a.Name, a.BornDate, a.BornLocation, a.Description)
	if err != nil {
		return fmt.Errorf("upsert author: %w", err)
	}
	return nil
}

func (t *loadTx) AuthorID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, "SELECT id FROM authors WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup author: %w", err)
	}
	return id, nil
}

func (t *loadTx) QuoteExists(ctx context.Context, text string, authorID *int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM quotes WHERE text = ? AND author_id IS ?)",
		text, nullableID(authorID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quote: %w", err)
	}
	return exists, nil
}

func (t *loadTx) InsertQuote(ctx context.Context, text string, authorID *int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO quotes (text, author_id) VALUES (?, ?)", text, nullableID(authorID))
	if err != nil {
		return 0, fmt.Errorf("insert quote: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("quote id: %w", err)
	}
	return id, nil
}

func (t *loadTx) EnsureTag(ctx context.Context, name string) (int64, bool, error) {
	res, err := t.tx.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name)
	if err != nil {
		return 0, false, fmt.Errorf("insert tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("tag rows affected: %w", err)
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("lookup tag: %w", err)
	}
	return id, affected > 0, nil
}

func (t *loadTx) LinkTag(ctx context.Context, quoteID, tagID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO quote_tags (quote_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING", quoteID, tagID)
	if err != nil {
		return false, fmt.Errorf("link tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link rows affected: %w", err)
	}
	return affected > 0, nil
}

func (t *loadTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *loadTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
