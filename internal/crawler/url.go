package crawler

import (
	"fmt"
	"strings"
)

// AuthorSlug derives the profile path segment for an author name by replacing
// every space with a hyphen. No other transformation is applied.
func AuthorSlug(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

// PageURL returns the listing page URL for page n (1-based).
func PageURL(baseURL string, n int) string {
	return fmt.Sprintf("%s/page/%d/", trimBase(baseURL), n)
}

// AuthorURL returns the profile page URL for an author name.
func AuthorURL(baseURL, name string) string {
	return fmt.Sprintf("%s/author/%s/", trimBase(baseURL), AuthorSlug(name))
}

func trimBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
