package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	_, err = NewWithPool(nil)
	require.Error(t, err)
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authors").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesTimestampColumns(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec(`(?s)authors \(.*created_at TIMESTAMPTZ NOT NULL DEFAULT now\(\).*` +
		`quotes \(.*created_at TIMESTAMPTZ NOT NULL DEFAULT now\(\).*` +
		`tags \(.*name TEXT UNIQUE NOT NULL,\s+created_at TIMESTAMPTZ NOT NULL DEFAULT now\(\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAuthorInsideSavepoint(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	author := store.Author{Name: "Jane Austen", BornDate: "December 16, 1775", BornLocation: "in Steventon Rectory", Description: "Novelist."}

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT load_row").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("INSERT INTO authors").
		WithArgs(author.Name, author.BornDate, author.BornLocation, author.Description).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("RELEASE SAVEPOINT load_row").WillReturnResult(pgxmock.NewResult("RELEASE", 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Row(ctx, func() error { return tx.UpsertAuthor(ctx, author) }))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailedRowRollsBackToSavepoint(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	violation := errors.New("new row violates check constraint")

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT load_row").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectQuery("INSERT INTO quotes").
		WithArgs("", pgxmock.AnyArg()).
		WillReturnError(violation)
	mock.ExpectExec("ROLLBACK TO SAVEPOINT load_row").WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectExec("RELEASE SAVEPOINT load_row").WillReturnResult(pgxmock.NewResult("RELEASE", 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	err = tx.Row(ctx, func() error {
		_, err := tx.InsertQuote(ctx, "", nil)
		return err
	})
	require.ErrorIs(t, err, violation)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorIDNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM authors").
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.AuthorID(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTagAndLink(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tags").WithArgs("love").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id FROM tags").WithArgs("love").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO quote_tags").WithArgs(int64(3), int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	id, created, err := tx.EnsureTag(ctx, "love")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, created)

	linked, err := tx.LinkTag(ctx, 3, 7)
	require.NoError(t, err)
	assert.False(t, linked, "existing association is left alone")

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchQuotesByTag(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"id", "text", "name", "born_date", "born_location", "description", "tags"}).
		AddRow(int64(1), "e1", "Albert Einstein", "March 14, 1879", "in Ulm, Germany", "Physicist.", "life"+store.TagSeparator+"love").
		AddRow(int64(9), "x1", "", "", "", "", "lovely")
	mock.ExpectQuery("ILIKE").WithArgs("%love%").WillReturnRows(rows)

	quotes, err := s.SearchQuotesByTag(context.Background(), "love")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, []string{"life", "love"}, quotes[0].Tags)
	assert.Equal(t, "in Ulm, Germany", quotes[0].Author.BornLocation)
	assert.Equal(t, store.QuoteAuthor{}, quotes[1].Author)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuotesQueryError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM quotes").WillReturnError(errors.New("connection refused"))

	_, err := s.ListQuotes(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query quotes")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("LEFT JOIN quotes").
		WillReturnRows(pgxmock.NewRows([]string{"name", "quotes_count"}).
			AddRow("Albert Einstein", 2).
			AddRow("Silent Author", 0))
	mock.ExpectQuery("LIMIT").WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"name", "usage_count"}).AddRow("life", 2))
	mock.ExpectQuery("COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"authors", "quotes", "tags"}).AddRow(2, 2, 1))

	ctx := context.Background()
	counts, err := s.QuoteCountsByAuthor(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.AuthorQuoteCount{
		{Author: "Albert Einstein", QuotesCount: 2},
		{Author: "Silent Author", QuotesCount: 0},
	}, counts)

	tags, err := s.TopTags(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []store.TagUsage{{Name: "life", UsageCount: 2}}, tags)

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Totals{Authors: 2, Quotes: 2, Tags: 1}, totals)
	require.NoError(t, mock.ExpectationsWereMet())
}
