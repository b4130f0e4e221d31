// Package loader writes crawled quotes and authors into the relational store.
// Authors are loaded first in their own transaction; quotes, tags and their
// associations follow in a second one. Individual rows that fail are logged,
// counted and skipped.
package loader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/corpus"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/metrics"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// QuotePolicy decides what happens to a quote that is already stored.
type QuotePolicy string

// Supported quote policies.
const (
	// PolicyAppend inserts every quote record, so re-loading duplicates rows.
	PolicyAppend QuotePolicy = "append"
	// PolicySkipExisting skips a record whose text and author are already stored.
	PolicySkipExisting QuotePolicy = "skip_existing"
)

// Config controls loader behavior.
type Config struct {
	QuotePolicy QuotePolicy
}

// Report summarizes one load.
type Report struct {
	AuthorsUpserted     int `json:"authors_upserted"`
	AuthorsFailed       int `json:"authors_failed"`
	QuotesInserted      int `json:"quotes_inserted"`
	QuotesSkipped       int `json:"quotes_skipped"`
	QuotesFailed        int `json:"quotes_failed"`
	QuotesWithoutAuthor int `json:"quotes_without_author"`
	TagsCreated         int `json:"tags_created"`
	LinksCreated        int `json:"links_created"`
}

func (r *Report) add(other Report) {
	r.AuthorsUpserted += other.AuthorsUpserted
	r.AuthorsFailed += other.AuthorsFailed
	r.QuotesInserted += other.QuotesInserted
	r.QuotesSkipped += other.QuotesSkipped
	r.QuotesFailed += other.QuotesFailed
	r.QuotesWithoutAuthor += other.QuotesWithoutAuthor
	r.TagsCreated += other.TagsCreated
	r.LinksCreated += other.LinksCreated
}

// Loader writes corpus records through a store.Repository.
type Loader struct {
	repo   store.Repository
	policy QuotePolicy
	logger *zap.Logger
}

// New validates cfg and constructs a Loader. An empty policy means append.
func New(repo store.Repository, cfg Config, logger *zap.Logger) (*Loader, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	policy := cfg.QuotePolicy
	if policy == "" {
		policy = PolicyAppend
	}
	if policy != PolicyAppend && policy != PolicySkipExisting {
		return nil, fmt.Errorf("unknown quote policy %q", cfg.QuotePolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Loader{repo: repo, policy: policy, logger: logger.Named("loader")}, nil
}

// LoadFiles reads both corpus files and loads them. Either file being missing
// or malformed aborts before anything is written.
func (l *Loader) LoadFiles(ctx context.Context, quotesPath, authorsPath string) (Report, error) {
	authors, err := corpus.ReadAuthors(authorsPath)
	if err != nil {
		return Report{}, err
	}
	quotes, err := corpus.ReadQuotes(quotesPath)
	if err != nil {
		return Report{}, err
	}
	return l.Load(ctx, authors, quotes)
}

// Load runs the author phase and then the quote phase. If the quote phase
// fails to commit, the committed author rows remain.
func (l *Loader) Load(ctx context.Context, authors []crawler.AuthorRecord, quotes []crawler.QuoteRecord) (Report, error) {
	report, err := l.LoadAuthors(ctx, authors)
	if err != nil {
		return report, err
	}
	quoteReport, err := l.LoadQuotes(ctx, quotes)
	report.add(quoteReport)
	if err != nil {
		return report, err
	}
	l.logger.Info("load finished",
		zap.Int("authors_upserted", report.AuthorsUpserted),
		zap.Int("authors_failed", report.AuthorsFailed),
		zap.Int("quotes_inserted", report.QuotesInserted),
		zap.Int("quotes_skipped", report.QuotesSkipped),
		zap.Int("quotes_failed", report.QuotesFailed),
		zap.Int("tags_created", report.TagsCreated),
		zap.Int("links_created", report.LinksCreated))
	return report, nil
}

// LoadAuthors upserts every author by name and commits once.
func (l *Loader) LoadAuthors(ctx context.Context, authors []crawler.AuthorRecord) (Report, error) {
	var report Report
	err := l.inTx(ctx, "author", func(tx store.LoadTx) error {
		for _, a := range authors {
			err := tx.Row(ctx, func() error {
				if a.Name == "" {
					return errors.New("author name is empty")
				}
				return tx.UpsertAuthor(ctx, store.Author{
					Name:         a.Name,
					BornDate:     a.BornDate,
					BornLocation: a.BornLocation,
					Description:  a.Description,
				})
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				report.AuthorsFailed++
				l.rowFailed("author", &crawler.StorageError{Op: "upsert author", Key: a.Name, Err: err})
				continue
			}
			report.AuthorsUpserted++
			metrics.ObserveLoadRow("author", "upserted")
		}
		return nil
	})
	return report, err
}

// LoadQuotes writes every quote with its tags and commits once.
func (l *Loader) LoadQuotes(ctx context.Context, quotes []crawler.QuoteRecord) (Report, error) {
	var report Report
	err := l.inTx(ctx, "quote", func(tx store.LoadTx) error {
		for _, q := range quotes {
			var outcome quoteOutcome
			err := tx.Row(ctx, func() error {
				var err error
				outcome, err = l.loadQuote(ctx, tx, q)
				return err
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				report.QuotesFailed++
				l.rowFailed("quote", &crawler.StorageError{Op: "insert quote", Key: q.Text, Err: err})
				continue
			}
			if outcome.skipped {
				report.QuotesSkipped++
				metrics.ObserveLoadRow("quote", "skipped")
				continue
			}
			report.QuotesInserted++
			report.TagsCreated += outcome.tagsCreated
			report.LinksCreated += outcome.linksCreated
			if outcome.orphan {
				report.QuotesWithoutAuthor++
			}
			metrics.ObserveLoadRow("quote", "inserted")
		}
		return nil
	})
	return report, err
}

type quoteOutcome struct {
	skipped      bool
	orphan       bool
	tagsCreated  int
	linksCreated int
}

func (l *Loader) loadQuote(ctx context.Context, tx store.LoadTx, q crawler.QuoteRecord) (quoteOutcome, error) {
	var out quoteOutcome
	if q.Text == "" {
		return out, errors.New("quote text is empty")
	}

	var authorID *int64
	id, err := tx.AuthorID(ctx, q.Author)
	switch {
	case err == nil:
		authorID = &id
	case errors.Is(err, store.ErrNotFound):
		out.orphan = true
		l.logger.Debug("quote author not stored", zap.String("author", q.Author))
	default:
		return out, err
	}

	if l.policy == PolicySkipExisting {
		exists, err := tx.QuoteExists(ctx, q.Text, authorID)
		if err != nil {
			return out, err
		}
		if exists {
			out.skipped = true
			return out, nil
		}
	}

	quoteID, err := tx.InsertQuote(ctx, q.Text, authorID)
	if err != nil {
		return out, err
	}
	for _, name := range q.Tags {
		if name == "" {
			continue
		}
		tagID, created, err := tx.EnsureTag(ctx, name)
		if err != nil {
			return out, err
		}
		if created {
			out.tagsCreated++
		}
		linked, err := tx.LinkTag(ctx, quoteID, tagID)
		if err != nil {
			return out, err
		}
		if linked {
			out.linksCreated++
		}
	}
	return out, nil
}

func (l *Loader) inTx(ctx context.Context, phase string, fn func(store.LoadTx) error) error {
	tx, err := l.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s phase: %w", phase, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.logger.Warn("rollback failed", zap.String("phase", phase), zap.Error(rbErr))
		}
		return fmt.Errorf("%s phase: %w", phase, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s phase: %w", phase, err)
	}
	return nil
}

func (l *Loader) rowFailed(entity string, err *crawler.StorageError) {
	metrics.ObserveLoadRow(entity, "failed")
	l.logger.Warn("row skipped", zap.String("entity", entity), zap.String("key", err.Key), zap.Error(err))
}
