// Package metrics holds the Prometheus collectors for crawling, loading and
// the read API. Collectors register with the default registry on Init.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quotes"

var (
	pagesTotal      *prometheus.CounterVec
	recordsTotal    prometheus.Counter
	authorsTotal    *prometheus.CounterVec
	loadRowsTotal   *prometheus.CounterVec
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	politenessDelay *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors once; later calls are no-ops.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages fetched, by outcome (success, empty, error).",
		}, []string{"status"})
		recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Quote records parsed from listing pages.",
		})
		authorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authors_total",
			Help:      "Author profiles looked up, by resolution status.",
		}, []string{"status"})
		loadRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_rows_total",
			Help:      "Corpus rows handled by the loader, by entity and outcome.",
		}, []string{"entity", "outcome"})
		apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Read API requests, by route pattern and status code.",
		}, []string{"route", "code"})
		apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Read API latency by route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"})
		politenessDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "politeness_delay_seconds",
			Help:      "Time spent waiting before a request to the source site.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5},
		}, []string{"host"})
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HostLabel reduces a URL to its lowercase host for use as a label value.
func HostLabel(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObservePage counts one listing page and the records parsed from it.
func ObservePage(status string, records int) {
	pagesTotal.WithLabelValues(status).Inc()
	if records > 0 {
		recordsTotal.Add(float64(records))
	}
}

func ObserveAuthor(status string) {
	authorsTotal.WithLabelValues(status).Inc()
}

func ObserveLoadRow(entity, outcome string) {
	loadRowsTotal.WithLabelValues(entity, outcome).Inc()
}

// ObservePolitenessDelay records a wait before fetching pageURL.
func ObservePolitenessDelay(pageURL string, waited time.Duration) {
	politenessDelay.WithLabelValues(HostLabel(pageURL)).Observe(waited.Seconds())
}

// Middleware counts API requests by chi route pattern; paths with no route
// are labeled "unmatched".
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		apiRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		apiLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
