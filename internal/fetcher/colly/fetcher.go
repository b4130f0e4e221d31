// Package collyfetcher fetches listing and author pages with gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

const (
	defaultTimeout = 15 * time.Second
	acceptHTML     = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements crawler.Fetcher. Each Fetch runs on a clone of one
// prototype collector, so every page visit gets its own callbacks while the
// transport and its idle connections are shared.
type Fetcher struct {
	cfg       Config
	transport *http.Transport
	proto     *colly.Collector
}

// hookRegistrar is the subset of *colly.Collector a visit attaches to.
type hookRegistrar interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}

	// Clones share the visited set; the crawler revisits page 1 on every run.
	proto := colly.NewCollector(colly.AllowURLRevisit())
	proto.WithTransport(transport)
	proto.SetRequestTimeout(cfg.Timeout)
	proto.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.UserAgent != "" {
		proto.UserAgent = cfg.UserAgent
	}

	return &Fetcher{cfg: cfg, transport: transport, proto: proto}
}

// Fetch GETs one page. Transport failures and non-2xx statuses come back as
// *crawler.NetworkError; a done context returns ctx.Err() wrapped.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, err)
	}

	v := &visit{req: request, start: time.Now()}
	c := f.proto.Clone()
	v.attach(c)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		f.transport.CloseIdleConnections()
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, ctx.Err())
	case err := <-done:
		if err == nil {
			err = v.err
		}
		if err != nil {
			return crawler.FetchResponse{}, &crawler.NetworkError{URL: request.URL, Err: err}
		}
		return v.resp, nil
	}
}

// visit collects the outcome of a single collector run.
type visit struct {
	req   crawler.FetchRequest
	start time.Time
	resp  crawler.FetchResponse
	err   error
}

func (v *visit) attach(h hookRegistrar) {
	h.OnRequest(v.onRequest)
	h.OnResponse(v.onResponse)
	h.OnError(v.onError)
}

func (v *visit) onRequest(r *colly.Request) {
	if r.Headers.Get("Accept") == "" {
		r.Headers.Set("Accept", acceptHTML)
	}
	for key, values := range v.req.Headers {
		for _, value := range values {
			r.Headers.Add(key, value)
		}
	}
}

func (v *visit) onResponse(r *colly.Response) {
	if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
		v.err = fmt.Errorf("unexpected status %d", r.StatusCode)
		return
	}
	var headers http.Header
	if r.Headers != nil {
		headers = r.Headers.Clone()
	}
	v.resp = crawler.FetchResponse{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(v.start),
	}
}

func (v *visit) onError(r *colly.Response, err error) {
	if r != nil && r.StatusCode != 0 {
		v.err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		return
	}
	v.err = err
}
