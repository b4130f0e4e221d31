// Package crawler implements the harvesting half of the quotes pipeline: the
// paginated crawl of listing pages, the HTML parsers for quote blocks and
// author profiles, the author resolver, and the page archive. The types shared
// by the loader, query engine and HTTP API live here as well.
package crawler
