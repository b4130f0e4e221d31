// Package system provides the wall clock used to stamp crawl sessions and
// exports.
package system

import "time"

// Clock implements crawler.Clock.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time truncated to the second, the precision
// written into exports and run summaries.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
