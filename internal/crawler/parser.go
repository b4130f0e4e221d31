package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	quoteBlockSelector  = "div.quote"
	quoteTextSelector   = "span.text"
	quoteAuthorSelector = "small.author"
	quoteTagSelector    = "a.tag"

	authorDetailsSelector  = "div.author-details"
	authorBornDateSelector = "span.author-born-date"
	authorBornLocSelector  = "span.author-born-location"
	authorDescSelector     = "div.author-description"
)

// ParseQuotesPage extracts one QuoteRecord per quote block, in document order.
// A block missing its text or author yields an empty string for that field; a
// block without tags yields an empty, non-nil tag list. An error is returned
// only when the document cannot be read.
func ParseQuotesPage(body []byte) ([]QuoteRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: "quotes page", Err: err}
	}

	blocks := doc.Find(quoteBlockSelector)
	records := make([]QuoteRecord, 0, blocks.Length())
	blocks.Each(func(_ int, block *goquery.Selection) {
		record := QuoteRecord{
			Text:   firstText(block, quoteTextSelector),
			Author: firstText(block, quoteAuthorSelector),
			Tags:   []string{},
		}
		block.Find(quoteTagSelector).Each(func(_ int, tag *goquery.Selection) {
			record.Tags = append(record.Tags, strings.TrimSpace(tag.Text()))
		})
		records = append(records, record)
	})
	return records, nil
}

// ParseAuthorPage extracts the profile fields for name. Fields whose nodes are
// absent are returned empty; the name is carried through unchanged.
func ParseAuthorPage(name string, body []byte) (AuthorRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return AuthorRecord{}, &ParseError{Source: "author page " + name, Err: err}
	}

	record := AuthorRecord{Name: name}
	details := doc.Find(authorDetailsSelector).First()
	if details.Length() == 0 {
		return record, nil
	}
	record.BornDate = firstText(details, authorBornDateSelector)
	record.BornLocation = firstText(details, authorBornLocSelector)
	record.Description = firstText(details, authorDescSelector)
	return record, nil
}

func firstText(sel *goquery.Selection, selector string) string {
	node := sel.Find(selector).First()
	if node.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(node.Text())
}
