package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type seedQuote struct {
	text   string
	author string
	tags   []string
}

// seed writes authors and quotes in one transaction the way the loader does.
func seed(t *testing.T, s *Store, authors []store.Author, quotes []seedQuote) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, a := range authors {
		require.NoError(t, tx.UpsertAuthor(ctx, a))
	}
	for _, q := range quotes {
		var authorID *int64
		if id, err := tx.AuthorID(ctx, q.author); err == nil {
			authorID = &id
		}
		quoteID, err := tx.InsertQuote(ctx, q.text, authorID)
		require.NoError(t, err)
		for _, tag := range q.tags {
			tagID, _, err := tx.EnsureTag(ctx, tag)
			require.NoError(t, err)
			_, err = tx.LinkTag(ctx, quoteID, tagID)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	totals, err := s.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Totals{}, totals)
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestUpsertAuthorOverwritesDetail(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s, []store.Author{{Name: "Jane Austen", BornDate: "old", Description: "first"}}, nil)
	seed(t, s, []store.Author{{Name: "Jane Austen", BornDate: "December 16, 1775", Description: "second"}}, nil)

	authors, err := s.ListAuthors(context.Background())
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "December 16, 1775", authors[0].BornDate)
	assert.Equal(t, "second", authors[0].Description)
}

func TestAuthorIDNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.AuthorID(ctx, "nobody")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestTagsAndLinksAreIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	quoteID, err := tx.InsertQuote(ctx, "q", nil)
	require.NoError(t, err)

	firstID, created, err := tx.EnsureTag(ctx, "love")
	require.NoError(t, err)
	assert.True(t, created)
	secondID, created, err := tx.EnsureTag(ctx, "love")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, secondID)

	linked, err := tx.LinkTag(ctx, quoteID, firstID)
	require.NoError(t, err)
	assert.True(t, linked)
	linked, err = tx.LinkTag(ctx, quoteID, firstID)
	require.NoError(t, err)
	assert.False(t, linked)
	require.NoError(t, tx.Commit(ctx))

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Totals{Quotes: 1, Tags: 1}, totals)
}

func TestQuoteExistsIsNullSafe(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s, []store.Author{{Name: "A"}}, []seedQuote{{text: "with author", author: "A"}, {text: "orphan", author: "missing"}})

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	authorID, err := tx.AuthorID(ctx, "A")
	require.NoError(t, err)

	exists, err := tx.QuoteExists(ctx, "with author", &authorID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = tx.QuoteExists(ctx, "orphan", nil)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = tx.QuoteExists(ctx, "with author", nil)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRowSavepointUndoesFailedRow(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tx.Row(ctx, func() error {
		if _, err := tx.InsertQuote(ctx, "discarded", nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = tx.Row(ctx, func() error {
		_, err := tx.InsertQuote(ctx, "kept", nil)
		return err
	})
	require.NoError(t, err)

	err = tx.Row(ctx, func() error {
		_, err := tx.InsertQuote(ctx, "", nil)
		return err
	})
	require.Error(t, err, "empty quote text violates the schema")
	require.NoError(t, tx.Commit(ctx))

	quotes, err := s.ListQuotes(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "kept", quotes[0].Text)
}

func TestRollbackDiscardsPhase(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertQuote(ctx, "never committed", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx), "second rollback is a no-op")

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Quotes)
}

func TestQueries(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s,
		[]store.Author{
			{Name: "Albert Einstein", BornDate: "March 14, 1879", BornLocation: "in Ulm, Germany", Description: "Physicist."},
			{Name: "Jane Austen", BornDate: "December 16, 1775"},
			{Name: "Silent Author"},
		},
		[]seedQuote{
			{text: "e1", author: "Albert Einstein", tags: []string{"life", "love"}},
			{text: "e2", author: "Albert Einstein", tags: []string{"life"}},
			{text: "a1", author: "Jane Austen", tags: []string{"humor", "lovely"}},
			{text: "x1", author: "Unknown Person"},
		},
	)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		quotes, err := s.ListQuotes(ctx)
		require.NoError(t, err)
		require.Len(t, quotes, 4)
		assert.Equal(t, "e1", quotes[0].Text)
		assert.Equal(t, "Albert Einstein", quotes[0].Author.Name)
		assert.Equal(t, "in Ulm, Germany", quotes[0].Author.BornLocation)
		assert.ElementsMatch(t, []string{"life", "love"}, quotes[0].Tags)
		assert.Equal(t, "x1", quotes[3].Text)
		assert.Equal(t, store.QuoteAuthor{}, quotes[3].Author, "quote without author row has empty author fields")
		assert.Equal(t, []string{}, quotes[3].Tags)
	})

	t.Run("search by author is case-insensitive", func(t *testing.T) {
		quotes, err := s.SearchQuotesByAuthor(ctx, "EINSTEIN")
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		for _, q := range quotes {
			assert.Contains(t, q.Author.Name, "Einstein")
		}
	})

	t.Run("search by author treats wildcards literally", func(t *testing.T) {
		quotes, err := s.SearchQuotesByAuthor(ctx, "%")
		require.NoError(t, err)
		assert.Empty(t, quotes)
	})

	t.Run("search by tag returns full tag lists", func(t *testing.T) {
		quotes, err := s.SearchQuotesByTag(ctx, "love")
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		assert.Equal(t, "e1", quotes[0].Text)
		assert.ElementsMatch(t, []string{"life", "love"}, quotes[0].Tags)
		assert.Equal(t, "a1", quotes[1].Text)
		assert.ElementsMatch(t, []string{"humor", "lovely"}, quotes[1].Tags)
	})

	t.Run("search without match", func(t *testing.T) {
		quotes, err := s.SearchQuotesByTag(ctx, "nonexistent")
		require.NoError(t, err)
		assert.Empty(t, quotes)
	})

	t.Run("counts by author include zero", func(t *testing.T) {
		counts, err := s.QuoteCountsByAuthor(ctx)
		require.NoError(t, err)
		assert.Equal(t, []store.AuthorQuoteCount{
			{Author: "Albert Einstein", QuotesCount: 2},
			{Author: "Jane Austen", QuotesCount: 1},
			{Author: "Silent Author", QuotesCount: 0},
		}, counts)
	})

	t.Run("top tags", func(t *testing.T) {
		tags, err := s.TopTags(ctx, 2)
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, store.TagUsage{Name: "life", UsageCount: 2}, tags[0])
		assert.Equal(t, 1, tags[1].UsageCount)

		all, err := s.TopTags(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("authors ordered by name", func(t *testing.T) {
		authors, err := s.ListAuthors(ctx)
		require.NoError(t, err)
		require.Len(t, authors, 3)
		assert.Equal(t, "Albert Einstein", authors[0].Name)
		assert.Equal(t, "Silent Author", authors[2].Name)
		assert.NotZero(t, authors[0].ID)
	})

	t.Run("totals", func(t *testing.T) {
		totals, err := s.Totals(ctx)
		require.NoError(t, err)
		assert.Equal(t, store.Totals{Authors: 3, Quotes: 4, Tags: 4}, totals)
	})
}

func TestSchemaColumns(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	want := map[string][]string{
		"authors":    {"id", "name", "born_date", "born_location", "description", "created_at"},
		"quotes":     {"id", "text", "author_id", "created_at"},
		"tags":       {"id", "name", "created_at"},
		"quote_tags": {"quote_id", "tag_id"},
	}
	for table, columns := range want {
		rows, err := s.db.QueryContext(context.Background(), "SELECT name FROM pragma_table_info(?)", table)
		require.NoError(t, err)
		var got []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			got = append(got, name)
		}
		require.NoError(t, rows.Err())
		require.NoError(t, rows.Close())
		assert.ElementsMatch(t, columns, got, table)
	}
}

func TestWithForeignKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)", withForeignKeys(":memory:"))
	assert.Equal(t, "file:q.db?mode=rwc&_pragma=foreign_keys(1)", withForeignKeys("file:q.db?mode=rwc"))
	assert.Equal(t, "q.db?_pragma=foreign_keys(0)", withForeignKeys("q.db?_pragma=foreign_keys(0)"))
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	// Force the pool to drop its connection and dial a fresh one.
	s.db.SetMaxIdleConns(0)
	s.db.SetMaxIdleConns(1)

	var enabled int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	_, err = s.db.ExecContext(ctx, "INSERT INTO quote_tags (quote_id, tag_id) VALUES (41, 42)")
	require.Error(t, err, "association rows must reference stored quotes and tags")
}

func TestSearchFoldsASCIICaseOnly(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s,
		[]store.Author{{Name: "GABRIEL GARCÍA MÁRQUEZ"}},
		[]seedQuote{{text: "g1", author: "GABRIEL GARCÍA MÁRQUEZ", tags: []string{"ÉTÉ"}}},
	)
	ctx := context.Background()

	ascii, err := s.SearchQuotesByAuthor(ctx, "gabriel garc")
	require.NoError(t, err)
	assert.Len(t, ascii, 1)

	accented, err := s.SearchQuotesByAuthor(ctx, "garcía")
	require.NoError(t, err)
	assert.Empty(t, accented, "LIKE does not fold non-ASCII letters")

	exact, err := s.SearchQuotesByAuthor(ctx, "GARCÍA")
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	tags, err := s.SearchQuotesByTag(ctx, "été")
	require.NoError(t, err)
	assert.Empty(t, tags)
}
