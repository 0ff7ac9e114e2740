package sources

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// firstText returns the trimmed text of the first selector that yields any.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}

	return ""
}

// firstAttr returns the first non-empty attribute among attrs on the first
// element matched by each selector in turn.
func firstAttr(s *goquery.Selection, attrs []string, selectors ...string) string {
	for _, sel := range selectors {
		node := s.Find(sel).First()
		for _, attr := range attrs {
			if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}

	return ""
}
