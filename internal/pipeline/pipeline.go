// Package pipeline sequences the crawl, resolve, corpus, load and notify
// steps behind the crawl, load and run commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/corpus"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/loader"
)

// DefaultTopic is the event name attached to run summaries.
const DefaultTopic = "quotes.run.completed"

// Config names the corpus files and the notification topic.
type Config struct {
	QuotesFile  string
	AuthorsFile string
	// Topic is the event name passed to the publisher. Empty means
	// DefaultTopic.
	Topic string
}

// Deps are the collaborators of a Pipeline. Loader and Publisher may be nil
// for crawl-only use; Publisher nil disables notifications.
type Deps struct {
	Crawler   *crawler.Crawler
	Resolver  *crawler.Resolver
	Loader    *loader.Loader
	Publisher crawler.Publisher
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// Pipeline runs the steps in order, one at a time.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// Harvest is the outcome of crawling and resolving.
type Harvest struct {
	Session *crawler.Session
	// CrawlErr is the fetch failure that ended pagination early, if any. The
	// session still holds every quote collected before it.
	CrawlErr error
}

// Summary describes one finished run. It is also the notification payload.
type Summary struct {
	SessionID         string         `json:"session_id"`
	Pages             int            `json:"pages"`
	Stop              string         `json:"stop_reason"`
	CrawlError        string         `json:"crawl_error,omitempty"`
	Quotes            int            `json:"quotes"`
	AuthorsResolved   int            `json:"authors_resolved"`
	AuthorsUnresolved int            `json:"authors_unresolved"`
	QuotesFile        string         `json:"quotes_file"`
	AuthorsFile       string         `json:"authors_file"`
	Load              *loader.Report `json:"load,omitempty"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// New constructs a Pipeline. Crawler, Resolver and Clock are required.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Crawler == nil || deps.Resolver == nil {
		return nil, errors.New("pipeline requires a crawler and a resolver")
	}
	if deps.Clock == nil {
		return nil, errors.New("pipeline requires a clock")
	}
	if cfg.QuotesFile == "" {
		cfg.QuotesFile = corpus.DefaultQuotesFile
	}
	if cfg.AuthorsFile == "" {
		cfg.AuthorsFile = corpus.DefaultAuthorsFile
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: logger.Named("pipeline")}, nil
}

// Harvest crawls the listing pages and resolves every distinct author. A
// fetch failure during pagination is kept in Harvest.CrawlErr and resolution
// proceeds with the partial session; it becomes fatal only when no quote was
// collected at all. Cancellation is always fatal.
func (p *Pipeline) Harvest(ctx context.Context) (Harvest, error) {
	session, err := p.deps.Crawler.Run(ctx)
	if session == nil {
		return Harvest{}, fmt.Errorf("crawl: %w", err)
	}
	h := Harvest{Session: session}
	if err != nil {
		if isCanceled(err) {
			return h, fmt.Errorf("crawl: %w", err)
		}
		if len(session.Quotes) == 0 {
			return h, fmt.Errorf("crawl produced no quotes: %w", err)
		}
		h.CrawlErr = err
		p.log.Warn("crawl stopped early; continuing with partial session",
			zap.String("session_id", session.ID),
			zap.Int("pages", session.Pages),
			zap.Int("quotes", len(session.Quotes)),
			zap.Error(err))
	}

	resolutions, err := p.deps.Resolver.Resolve(ctx, session.ID, session.AuthorNames())
	session.Authors = resolutions
	if err != nil {
		return h, fmt.Errorf("resolve authors: %w", err)
	}
	p.log.Info("harvest finished",
		zap.String("session_id", session.ID),
		zap.Int("quotes", len(session.Quotes)),
		zap.Int("authors_resolved", len(session.Authors)-session.UnresolvedCount()),
		zap.Int("authors_unresolved", session.UnresolvedCount()))
	return h, nil
}

// WriteCorpus writes the session's quotes and resolved authors to the
// configured corpus files.
func (p *Pipeline) WriteCorpus(session *crawler.Session) error {
	if err := corpus.WriteQuotes(p.cfg.QuotesFile, session.Quotes); err != nil {
		return err
	}
	if err := corpus.WriteAuthors(p.cfg.AuthorsFile, session.ResolvedAuthors()); err != nil {
		return err
	}
	p.log.Info("corpus written",
		zap.String("quotes_file", p.cfg.QuotesFile),
		zap.String("authors_file", p.cfg.AuthorsFile))
	return nil
}

// Crawl harvests and writes the corpus files without touching the store.
func (p *Pipeline) Crawl(ctx context.Context) (Summary, error) {
	h, err := p.Harvest(ctx)
	if err != nil {
		return p.summarize(h), err
	}
	if err := p.WriteCorpus(h.Session); err != nil {
		return p.summarize(h), err
	}
	return p.summarize(h), nil
}

// Load reads the corpus files and writes them into the store.
func (p *Pipeline) Load(ctx context.Context) (loader.Report, error) {
	if p.deps.Loader == nil {
		return loader.Report{}, errors.New("pipeline has no loader")
	}
	report, err := p.deps.Loader.LoadFiles(ctx, p.cfg.QuotesFile, p.cfg.AuthorsFile)
	if err != nil {
		return report, fmt.Errorf("load corpus: %w", err)
	}
	return report, nil
}

// Run crawls, writes the corpus, loads it and publishes the summary. A
// failed notification is logged; the loaded data stays committed.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p.deps.Loader == nil {
		return Summary{}, errors.New("pipeline has no loader")
	}
	summary, err := p.Crawl(ctx)
	if err != nil {
		return summary, err
	}
	report, err := p.Load(ctx)
	summary.Load = &report
	summary.FinishedAt = p.deps.Clock.Now()
	if err != nil {
		return summary, err
	}
	p.notify(ctx, summary)
	return summary, nil
}

func (p *Pipeline) notify(ctx context.Context, summary Summary) {
	if p.deps.Publisher == nil {
		return
	}
	id, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, summary)
	if err != nil {
		p.log.Warn("run summary not published", zap.String("session_id", summary.SessionID), zap.Error(err))
		return
	}
	p.log.Info("run summary published",
		zap.String("session_id", summary.SessionID),
		zap.String("topic", p.cfg.Topic),
		zap.String("message_id", id))
}

func (p *Pipeline) summarize(h Harvest) Summary {
	s := Summary{
		QuotesFile:  p.cfg.QuotesFile,
		AuthorsFile: p.cfg.AuthorsFile,
		FinishedAt:  p.deps.Clock.Now(),
	}
	if h.Session != nil {
		s.SessionID = h.Session.ID
		s.Pages = h.Session.Pages
		s.Stop = string(h.Session.Stop)
		s.Quotes = len(h.Session.Quotes)
		s.AuthorsUnresolved = h.Session.UnresolvedCount()
		s.AuthorsResolved = len(h.Session.Authors) - s.AuthorsUnresolved
	}
	if h.CrawlErr != nil {
		s.CrawlError = h.CrawlErr.Error()
	}
	return s
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
