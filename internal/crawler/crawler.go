package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/metrics"
)

// Config holds the settings for a crawl session.
type Config struct {
	// BaseURL is the site root; listing pages live at <BaseURL>/page/N/.
	BaseURL string
	// MaxPages caps the number of listing pages fetched. Zero means no cap.
	MaxPages int
}

// Crawler walks the listing pages in order until one comes back empty, a
// fetch fails, or the page ceiling is reached.
type Crawler struct {
	cfg      Config
	fetcher  Fetcher
	pacer    Pacer
	archiver *Archiver
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// New constructs a Crawler. archiver may be nil.
func New(
	cfg Config,
	fetcher Fetcher,
	pacer Pacer,
	archiver *Archiver,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Crawler{
		cfg:      cfg,
		fetcher:  fetcher,
		pacer:    pacer,
		archiver: archiver,
		clock:    clock,
		ids:      ids,
		logger:   logger.Named("crawler"),
	}
}

// Run paginates from page 1. The returned session always holds every record
// collected before pagination stopped. A fetch failure ends pagination with
// StopFetchError and is returned as a *NetworkError alongside the session so
// the caller can decide whether partial data is usable.
func (c *Crawler) Run(ctx context.Context) (*Session, error) {
	id, err := c.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	session := NewSession(id, c.clock.Now())
	logger := c.logger.With(zap.String("session_id", id))
	logger.Info("crawl started", zap.String("base_url", c.cfg.BaseURL), zap.Int("max_pages", c.cfg.MaxPages))

	for page := 1; ; page++ {
		if c.cfg.MaxPages > 0 && page > c.cfg.MaxPages {
			session.finish(StopPageLimit, c.clock.Now())
			logger.Info("page limit reached", zap.Int("pages", session.Pages))
			return session, nil
		}

		pageURL := PageURL(c.cfg.BaseURL, page)
		if err := c.pacer.Wait(ctx, pageURL); err != nil {
			session.finish(StopCanceled, c.clock.Now())
			return session, fmt.Errorf("wait for page %d: %w", page, err)
		}

		resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: pageURL})
		c.pacer.Done(pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				session.finish(StopCanceled, c.clock.Now())
				return session, fmt.Errorf("fetch page %d: %w", page, ctxErr)
			}
			metrics.ObservePage("error", 0)
			session.finish(StopFetchError, c.clock.Now())
			logger.Warn("page fetch failed; stopping pagination",
				zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
			var netErr *NetworkError
			if !errors.As(err, &netErr) {
				err = &NetworkError{URL: pageURL, Err: err}
			}
			return session, err
		}
		c.archiver.archiveQuietly(ctx, session.ID, resp)

		records, err := ParseQuotesPage(resp.Body)
		if err != nil {
			// An unreadable document ends pagination the same way a failed fetch does.
			metrics.ObservePage("error", 0)
			session.finish(StopFetchError, c.clock.Now())
			logger.Warn("page unreadable; stopping pagination", zap.Int("page", page), zap.Error(err))
			return session, err
		}
		if len(records) == 0 {
			metrics.ObservePage("empty", 0)
			session.finish(StopSuccess, c.clock.Now())
			logger.Info("crawl finished",
				zap.Int("pages", session.Pages),
				zap.Int("quotes", len(session.Quotes)),
				zap.Int("authors", len(session.authorOrder)))
			return session, nil
		}

		metrics.ObservePage("success", len(records))
		session.AddPage(records)
		logger.Debug("page scraped", zap.Int("page", page), zap.Int("records", len(records)))
	}
}
