package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type quotesResponse struct {
	Count  int           `json:"count"`
	Quotes []store.Quote `json:"quotes"`
}

type authorsResponse struct {
	Count   int            `json:"count"`
	Authors []store.Author `json:"authors"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Totals(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) {
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))

	var (
		quotes []store.Quote
		err    error
	)
	switch {
	case author != "" && tag != "":
		s.writeError(w, http.StatusBadRequest, "author and tag filters are mutually exclusive")
		return
	case author != "":
		quotes, err = s.engine.SearchByAuthor(r.Context(), author)
	case tag != "":
		quotes, err = s.engine.SearchByTag(r.Context(), tag)
	default:
		quotes, err = s.engine.ListQuotes(r.Context())
	}
	if err != nil {
		s.queryFailed(w, r, "list quotes", err)
		return
	}
	if quotes == nil {
		quotes = []store.Quote{}
	}
	s.writeJSON(w, http.StatusOK, quotesResponse{Count: len(quotes), Quotes: quotes})
}

func (s *Server) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.engine.ListAuthors(r.Context())
	if err != nil {
		s.queryFailed(w, r, "list authors", err)
		return
	}
	if authors == nil {
		authors = []store.Author{}
	}
	s.writeJSON(w, http.StatusOK, authorsResponse{Count: len(authors), Authors: authors})
}

func (s *Server) authorCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.QuoteCountsByAuthor(r.Context())
	if err != nil {
		s.queryFailed(w, r, "author counts", err)
		return
	}
	if counts == nil {
		counts = []store.AuthorQuoteCount{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"quotes_by_author": counts})
}

func (s *Server) topTags(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	tags, err := s.engine.TopTags(r.Context(), limit)
	if err != nil {
		s.queryFailed(w, r, "top tags", err)
		return
	}
	if tags == nil {
		tags = []store.TagUsage{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"top_tags": tags})
}

func (s *Server) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.engine.Totals(r.Context())
	if err != nil {
		s.queryFailed(w, r, "totals", err)
		return
	}
	s.writeJSON(w, http.StatusOK, totals)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Export(r.Context())
	if err != nil {
		s.queryFailed(w, r, "export", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) queryFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("query failed",
		zap.String("op", op),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err),
	)
	s.writeError(w, status, op+" failed")
}
