package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/metrics"
)

// Resolver fetches one profile page per distinct author name.
type Resolver struct {
	baseURL  string
	fetcher  Fetcher
	pacer    Pacer
	archiver *Archiver
	logger   *zap.Logger
}

// NewResolver constructs a Resolver. archiver may be nil.
func NewResolver(baseURL string, fetcher Fetcher, pacer Pacer, archiver *Archiver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Resolver{
		baseURL:  baseURL,
		fetcher:  fetcher,
		pacer:    pacer,
		archiver: archiver,
		logger:   logger.Named("resolver"),
	}
}

// Resolve returns one resolution per name, in input order. A failed profile
// fetch marks that author unresolved and moves on. Cancellation stops early
// and returns the resolutions gathered so far with the context error.
func (r *Resolver) Resolve(ctx context.Context, sessionID string, names []string) ([]AuthorResolution, error) {
	out := make([]AuthorResolution, 0, len(names))
	for _, name := range names {
		profileURL := AuthorURL(r.baseURL, name)
		if err := r.pacer.Wait(ctx, profileURL); err != nil {
			return out, err
		}

		res := r.resolveOne(ctx, sessionID, name, profileURL)
		if res.Status != StatusResolved && ctx.Err() != nil {
			return out, ctx.Err()
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, sessionID, name, profileURL string) AuthorResolution {
	res := AuthorResolution{Name: name, Status: StatusUnresolved}

	resp, err := r.fetcher.Fetch(ctx, FetchRequest{URL: profileURL})
	r.pacer.Done(profileURL)
	if err != nil {
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			err = &NetworkError{URL: profileURL, Err: err}
		}
		res.Err = err
		metrics.ObserveAuthor(string(StatusUnresolved))
		r.logger.Warn("author profile fetch failed",
			zap.String("author", name), zap.String("url", profileURL), zap.Error(err))
		return res
	}
	r.archiver.archiveQuietly(ctx, sessionID, resp)

	detail, err := ParseAuthorPage(name, resp.Body)
	if err != nil {
		res.Err = err
		metrics.ObserveAuthor(string(StatusUnresolved))
		r.logger.Warn("author profile unreadable", zap.String("author", name), zap.Error(err))
		return res
	}

	res.Status = StatusResolved
	res.Detail = detail
	metrics.ObserveAuthor(string(StatusResolved))
	r.logger.Debug("author resolved", zap.String("author", name))
	return res
}
