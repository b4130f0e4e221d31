// Package headless renders listing pages of the JavaScript variant of the
// quotes site (/js/page/N/) in headless Chrome, so the parser sees the same
// div.quote markup it gets from the static pages.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

const (
	defaultNavTimeout = 45 * time.Second
	readyExpression   = `document.readyState === "complete"`
)

// Config controls the browser.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
}

// Fetcher implements crawler.Fetcher with one browser process and a fresh tab
// per page.
type Fetcher struct {
	cfg      Config
	browser  context.Context
	shutdown context.CancelFunc
}

// New prepares the browser allocator. Chrome itself starts on the first Fetch.
func New(cfg Config) (*Fetcher, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, errors.New("headless: navigation timeout must be >= 0")
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	browser, shutdown := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Fetcher{cfg: cfg, browser: browser, shutdown: shutdown}, nil
}

// Close stops the browser.
func (f *Fetcher) Close() {
	f.shutdown()
}

// Fetch loads request.URL in a new tab, waits for the scripts to finish and
// returns the rendered document.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	tab, closeTab := chromedp.NewContext(f.browser)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tab, cancel := context.WithTimeout(tab, f.cfg.NavigationTimeout)
	defer cancel()

	doc := &mainDocument{}
	chromedp.ListenTarget(tab, doc.observe)

	start := time.Now()
	var html, location string
	err := chromedp.Run(tab,
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.Poll(readyExpression, nil),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, ctx.Err())
		}
		return crawler.FetchResponse{}, &crawler.NetworkError{URL: request.URL, Err: fmt.Errorf("render: %w", err)}
	}

	status, headers, finalURL := doc.result()
	if status == 0 {
		status = http.StatusOK
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return crawler.FetchResponse{}, &crawler.NetworkError{URL: request.URL, Err: fmt.Errorf("unexpected status %d", status)}
	}
	if finalURL == "" {
		finalURL = firstNonEmpty(location, request.URL)
	}

	return crawler.FetchResponse{
		URL:          finalURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) prepareTab(extra http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("override user agent: %w", err)
			}
		}
		if len(extra) == 0 {
			return nil
		}
		if err := network.SetExtraHTTPHeaders(devtoolsHeaders(extra)).Do(ctx); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
		return nil
	})
}

// mainDocument keeps the response of the first document loaded in the tab.
// Later document responses belong to frames and are ignored.
type mainDocument struct {
	mu      sync.Mutex
	seen    bool
	status  int
	url     string
	headers http.Header
}

func (d *mainDocument) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen {
		return
	}
	d.seen = true
	d.status = int(resp.Response.Status)
	d.url = resp.Response.URL
	d.headers = httpHeaders(resp.Response.Headers)
}

func (d *mainDocument) result() (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	headers := d.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return d.status, headers, d.url
}

// devtoolsHeaders folds repeated values into one comma-separated field.
func devtoolsHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		if len(values) > 0 {
			out[key] = strings.Join(values, ", ")
		}
	}
	return out
}

func httpHeaders(h network.Headers) http.Header {
	out := http.Header{}
	for key, value := range h {
		// Chrome joins repeated headers with newlines.
		for _, v := range strings.Split(fmt.Sprint(value), "\n") {
			out.Add(key, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
