// Package app builds the long-lived services named by the configuration and
// hands them to the commands. Expensive pieces (store connection, browser,
// cloud clients) are created on first use and released by Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/api"
	"github.com/JakeFAU/quotes-crawler/internal/clock/system"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/quotes-crawler/internal/hash/sha256"
	"github.com/JakeFAU/quotes-crawler/internal/id/uuid"
	"github.com/JakeFAU/quotes-crawler/internal/loader"
	"github.com/JakeFAU/quotes-crawler/internal/pipeline"
	"github.com/JakeFAU/quotes-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/quotes-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/quotes-crawler/internal/query"
	gcsstorage "github.com/JakeFAU/quotes-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/quotes-crawler/internal/storage/local"
	pgstore "github.com/JakeFAU/quotes-crawler/internal/storage/postgres"
	"github.com/JakeFAU/quotes-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App holds the configuration, the logger and every service built so far.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  crawler.Clock

	repo      store.Repository
	gcsClient *storage.Client
	publisher *gcppublisher.Publisher
	headless  *headlessfetcher.Fetcher
}

// New returns an App. Nothing is dialed until a service is requested.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, clock: system.New()}
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Repository opens the configured store and ensures its schema exists.
func (a *App) Repository(ctx context.Context) (store.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	var (
		repo store.Repository
		err  error
	)
	switch a.cfg.DB.Driver {
	case "postgres":
		repo, err = pgstore.New(ctx, pgstore.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
		})
	case "sqlite":
		repo, err = sqlite.Open(ctx, a.cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", a.cfg.DB.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.DB.Driver, err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("migrate %s store: %w", a.cfg.DB.Driver, err)
	}
	a.logger.Info("store ready", zap.String("driver", a.cfg.DB.Driver))
	a.repo = repo
	return repo, nil
}

// Engine returns a query engine over the configured store.
func (a *App) Engine(ctx context.Context) (*query.Engine, error) {
	repo, err := a.Repository(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(repo, a.clock, a.cfg.Export.TopTags), nil
}

// Pipeline assembles the crawl pipeline. withStore adds the loader (and
// opens the store); crawl-only callers pass false.
func (a *App) Pipeline(ctx context.Context, withStore bool) (*pipeline.Pipeline, error) {
	archiver, err := a.setupArchive(ctx)
	if err != nil {
		return nil, err
	}
	pageFetcher, profileFetcher, err := a.setupFetchers()
	if err != nil {
		return nil, err
	}
	pacer := ratelimit.New(ratelimit.Config{Interval: a.cfg.Crawler.Delay})

	deps := pipeline.Deps{
		Crawler: crawler.New(
			crawler.Config{BaseURL: a.cfg.CrawlBaseURL(), MaxPages: a.cfg.Crawler.MaxPages},
			pageFetcher,
			pacer,
			archiver,
			a.clock,
			uuid.New(),
			a.logger,
		),
		Resolver: crawler.NewResolver(a.cfg.Source.BaseURL, profileFetcher, pacer, archiver, a.logger),
		Clock:    a.clock,
		Logger:   a.logger,
	}

	if withStore {
		repo, err := a.Repository(ctx)
		if err != nil {
			return nil, err
		}
		deps.Loader, err = loader.New(repo, loader.Config{
			QuotePolicy: loader.QuotePolicy(a.cfg.Loader.QuotePolicy),
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("loader init failed: %w", err)
		}
		pub, err := a.setupPublisher(ctx)
		if err != nil {
			return nil, err
		}
		if pub != nil {
			deps.Publisher = pub
		}
	}

	return pipeline.New(pipeline.Config{
		QuotesFile:  a.cfg.Corpus.QuotesFile,
		AuthorsFile: a.cfg.Corpus.AuthorsFile,
	}, deps)
}

// Loader returns a loader over the configured store.
func (a *App) Loader(ctx context.Context) (*loader.Loader, error) {
	repo, err := a.Repository(ctx)
	if err != nil {
		return nil, err
	}
	l, err := loader.New(repo, loader.Config{QuotePolicy: loader.QuotePolicy(a.cfg.Loader.QuotePolicy)}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("loader init failed: %w", err)
	}
	return l, nil
}

// setupFetchers returns the fetcher for listing pages and the one for author
// profiles. Only listing pages differ on the JavaScript variant of the site,
// so profiles always go through plain HTTP.
func (a *App) setupFetchers() (crawler.Fetcher, crawler.Fetcher, error) {
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Source.UserAgent,
		RespectRobots: a.cfg.Source.RespectRobots,
		Timeout:       a.cfg.HTTPTimeout(),
	})
	if !a.cfg.Source.RenderJS {
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Source.UserAgent))
		return plain, plain, nil
	}
	if a.headless == nil {
		h, err := headlessfetcher.New(headlessfetcher.Config{
			UserAgent:         a.cfg.Source.UserAgent,
			NavigationTimeout: a.cfg.NavigationTimeout(),
			ExecPath:          a.cfg.Headless.ExecPath,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = h
	}
	a.logger.Info("using headless fetcher for listing pages",
		zap.Duration("nav_timeout", a.cfg.NavigationTimeout()))
	return a.headless, plain, nil
}

func (a *App) setupArchive(ctx context.Context) (*crawler.Archiver, error) {
	var blobs crawler.BlobStore
	switch {
	case a.cfg.Archive.GCSBucket != "":
		if a.gcsClient == nil {
			client, err := storage.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("gcs client init failed: %w", err)
			}
			a.gcsClient = client
		}
		bs, err := gcsstorage.New(a.gcsClient, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages to GCS", zap.String("bucket", a.cfg.Archive.GCSBucket))
		blobs = bs
	case a.cfg.Archive.Dir != "":
		bs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages locally", zap.String("dir", a.cfg.Archive.Dir))
		blobs = bs
	default:
		a.logger.Debug("page archive disabled")
		return nil, nil
	}
	return crawler.NewArchiver(blobs, sha256.New(), a.cfg.Archive.Prefix, a.logger), nil
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.Topic == "" {
		a.logger.Debug("no Pub/Sub topic configured; run summaries are not published")
		return nil, nil
	}
	if a.publisher == nil {
		pub, err := gcppublisher.New(ctx, gcppublisher.Config{
			ProjectID: a.cfg.PubSub.ProjectID,
			TopicID:   a.cfg.PubSub.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.publisher = pub
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.Topic))
	}
	return a.publisher, nil
}

// Serve runs the read API until ctx is canceled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	engine, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	server := api.NewServer(engine, api.Config{RequestTimeout: a.cfg.RequestTimeout()}, a.logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every service that was built.
func (a *App) Close() error {
	var errs []error
	if a.headless != nil {
		a.headless.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.logger.Sync(); err != nil && !isStdStreamSyncErr(err) {
		errs = append(errs, fmt.Errorf("sync logger: %w", err))
	}
	return errors.Join(errs...)
}

// Syncing a logger bound to a terminal fails with EINVAL or ENOTTY; that is
// not a lost log.
func isStdStreamSyncErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
