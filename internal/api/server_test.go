package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/query"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeReader struct {
	quotes       []store.Quote
	authors      []store.Author
	counts       []store.AuthorQuoteCount
	tags         []store.TagUsage
	totals       store.Totals
	err          error
	gotAuthor    string
	gotTag       string
	gotTagLimit  int
	panicOnQuote bool
}

func (f *fakeReader) ListQuotes(context.Context) ([]store.Quote, error) {
	if f.panicOnQuote {
		panic("boom")
	}
	return f.quotes, f.err
}

func (f *fakeReader) SearchQuotesByAuthor(_ context.Context, substring string) ([]store.Quote, error) {
	f.gotAuthor = substring
	return f.quotes[:1], f.err
}

func (f *fakeReader) SearchQuotesByTag(_ context.Context, substring string) ([]store.Quote, error) {
	f.gotTag = substring
	return nil, f.err
}

func (f *fakeReader) ListAuthors(context.Context) ([]store.Author, error) { return f.authors, f.err }

func (f *fakeReader) QuoteCountsByAuthor(context.Context) ([]store.AuthorQuoteCount, error) {
	return f.counts, f.err
}

func (f *fakeReader) TopTags(_ context.Context, limit int) ([]store.TagUsage, error) {
	f.gotTagLimit = limit
	if limit < len(f.tags) {
		return f.tags[:limit], f.err
	}
	return f.tags, f.err
}

func (f *fakeReader) Totals(context.Context) (store.Totals, error) { return f.totals, f.err }

func seededReader() *fakeReader {
	return &fakeReader{
		quotes: []store.Quote{
			{ID: 1, Text: "“A day without sunshine is like, you know, night.”", Author: store.QuoteAuthor{Name: "Steve Martin"}, Tags: []string{"humor", "obvious"}},
			{ID: 2, Text: "“Try not to become a man of success.”", Author: store.QuoteAuthor{Name: "Albert Einstein"}, Tags: []string{"success"}},
		},
		authors: []store.Author{{ID: 1, Name: "Albert Einstein"}, {ID: 2, Name: "Steve Martin"}},
		counts:  []store.AuthorQuoteCount{{Author: "Albert Einstein", QuotesCount: 1}, {Author: "Steve Martin", QuotesCount: 1}},
		tags:    []store.TagUsage{{Name: "humor", UsageCount: 1}, {Name: "obvious", UsageCount: 1}, {Name: "success", UsageCount: 1}},
		totals:  store.Totals{Authors: 2, Quotes: 2, Tags: 3},
	}
}

func newTestServer(reader store.Reader) *Server {
	engine := query.New(reader, fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}, 2)
	return NewServer(engine, Config{RequestTimeout: time.Second}, zap.NewNop())
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(seededReader()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	t.Parallel()

	ok := serve(t, newTestServer(seededReader()), "/readyz")
	assert.Equal(t, http.StatusOK, ok.Code)

	broken := seededReader()
	broken.err = errors.New("database is locked")
	rec := serve(t, newTestServer(broken), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	newTestServer(seededReader()).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(seededReader())
	serve(t, s, "/v1/quotes")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quotes_api_requests_total{code="200",route="/v1/quotes"}`)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	reader := seededReader()
	reader.panicOnQuote = true
	rec := serve(t, newTestServer(reader), "/v1/quotes")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(seededReader()), "/v1/jobs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type slowReader struct {
	*fakeReader
}

func (slowReader) Totals(ctx context.Context) (store.Totals, error) {
	<-ctx.Done()
	return store.Totals{}, ctx.Err()
}

func TestRequestDeadlineReachesStore(t *testing.T) {
	t.Parallel()

	engine := query.New(slowReader{seededReader()}, fakeClock{}, 2)
	s := NewServer(engine, Config{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())
	rec := serve(t, s, "/v1/stats/totals")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"totals failed"}`, rec.Body.String())
}
