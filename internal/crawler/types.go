package crawler

import (
	"net/http"
	"time"
)

// QuoteRecord is one quote block scraped from a listing page.
type QuoteRecord struct {
	Text   string   `json:"text"`
	Author string   `json:"author"`
	Tags   []string `json:"tags"`
}

// AuthorRecord is the biographical detail scraped from an author profile page.
type AuthorRecord struct {
	Name         string `json:"name"`
	BornDate     string `json:"born_date"`
	BornLocation string `json:"born_location"`
	Description  string `json:"description"`
}

// ResolutionStatus reports whether an author profile was fetched.
type ResolutionStatus string

// Resolution states.
const (
	StatusUnresolved ResolutionStatus = "unresolved"
	StatusResolved   ResolutionStatus = "resolved"
)

// AuthorResolution is the outcome of resolving one distinct author name.
// Detail is only meaningful when Status is StatusResolved; Err carries the
// reason when it is not.
type AuthorResolution struct {
	Name   string
	Status ResolutionStatus
	Detail AuthorRecord
	Err    error
}

// StopReason describes why pagination ended.
type StopReason string

// Terminal pagination states.
const (
	StopSuccess    StopReason = "success"
	StopFetchError StopReason = "fetch_error"
	StopPageLimit  StopReason = "page_limit"
	StopCanceled   StopReason = "canceled"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the fetcher output.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
