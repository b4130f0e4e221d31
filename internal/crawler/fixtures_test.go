package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type fixtureQuote struct {
	text   string
	author string
	tags   []string
}

func quotesPageHTML(quotes ...fixtureQuote) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="container"><div class="col-md-8">`)
	for _, q := range quotes {
		b.WriteString(`<div class="quote" itemscope>`)
		fmt.Fprintf(&b, `<span class="text" itemprop="text">  %s  </span>`, q.text)
		fmt.Fprintf(&b, `<span>by <small class="author" itemprop="author">%s</small>`, q.author)
		b.WriteString(`<a href="/author/x">(about)</a></span><div class="tags">Tags: `)
		for _, tag := range q.tags {
			fmt.Fprintf(&b, `<a class="tag" href="/tag/%s/page/1/">%s</a>`, tag, tag)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func authorPageHTML(born, location, description string) string {
	return fmt.Sprintf(`<html><body><div class="author-details">
<h3 class="author-title">Someone</h3>
<p><strong>Born:</strong> <span class="author-born-date">%s</span>
<span class="author-born-location">%s</span></p>
<div class="author-description">
    %s
</div></div></body></html>`, born, location, description)
}

// stubFetcher serves canned bodies keyed by URL and fails everything else.
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]error
	visited []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: map[string]string{}, fail: map[string]error{}}
}

func (s *stubFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, req.URL)
	if err, ok := s.fail[req.URL]; ok {
		return FetchResponse{}, err
	}
	body, ok := s.pages[req.URL]
	if !ok {
		return FetchResponse{}, errors.New("Not Found")
	}
	return FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(body)}, nil
}

type countingPacer struct {
	mu    sync.Mutex
	calls []string
	done  []string
	err   error
}

func (p *countingPacer) Done(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, url)
}

func (p *countingPacer) Wait(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	return p.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticIDs struct{ id string }

func (s staticIDs) NewID() (string, error) { return s.id, nil }

const testBase = "http://quotes.test"
