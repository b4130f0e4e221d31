package crawler

import "time"

// Session is the in-memory result of one crawl: the quotes in page order, the
// distinct author names in first-seen order, and the author resolutions once
// the resolver has run.
type Session struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Stop       StopReason
	Quotes     []QuoteRecord
	Authors    []AuthorResolution

	seen        map[string]struct{}
	authorOrder []string
}

// NewSession starts an empty session.
func NewSession(id string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		StartedAt: startedAt,
		Quotes:    []QuoteRecord{},
		seen:      make(map[string]struct{}),
	}
}

// AddPage appends the records of one listing page and registers any non-empty
// author names not seen before.
func (s *Session) AddPage(records []QuoteRecord) {
	s.Pages++
	for _, record := range records {
		s.Quotes = append(s.Quotes, record)
		if record.Author == "" {
			continue
		}
		if _, ok := s.seen[record.Author]; ok {
			continue
		}
		s.seen[record.Author] = struct{}{}
		s.authorOrder = append(s.authorOrder, record.Author)
	}
}

// AuthorNames returns the distinct author names in first-seen order.
func (s *Session) AuthorNames() []string {
	out := make([]string, len(s.authorOrder))
	copy(out, s.authorOrder)
	return out
}

// ResolvedAuthors returns the detail of every resolved author, in resolution
// order. Unresolved authors are omitted.
func (s *Session) ResolvedAuthors() []AuthorRecord {
	return Resolved(s.Authors)
}

// UnresolvedCount reports how many authors failed to resolve.
func (s *Session) UnresolvedCount() int {
	n := 0
	for _, res := range s.Authors {
		if res.Status != StatusResolved {
			n++
		}
	}
	return n
}

func (s *Session) finish(reason StopReason, at time.Time) {
	s.Stop = reason
	s.FinishedAt = at
}

// Resolved filters resolutions down to the resolved author details.
func Resolved(resolutions []AuthorResolution) []AuthorRecord {
	out := make([]AuthorRecord, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Status == StatusResolved {
			out = append(out, res.Detail)
		}
	}
	return out
}
