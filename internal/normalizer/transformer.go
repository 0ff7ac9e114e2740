package normalizer

import (
	"strings"
	"time"

	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

// DefaultTitleStopWords are dropped from normalized titles.
var DefaultTitleStopWords = []string{
	"a", "an", "and", "the", "with", "for", "of", "in", "on", "by", "to", "from", "at", "or",
}

// FetchMeta describes how a raw listing was obtained.
type FetchMeta struct {
	Latency   time.Duration
	QueryRank int
}

// Transformer handles data format transformations.
type Transformer struct {
	strings   *utils.StringHelper
	http      *utils.HTTPHelper
	stopWords map[string]bool
}

// NewTransformer creates a new transformer. A nil stopWords uses DefaultTitleStopWords.
func NewTransformer(stopWords []string) *Transformer {
	if stopWords == nil {
		stopWords = DefaultTitleStopWords
	}

	set := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}

	return &Transformer{
		strings:   utils.NewStringHelper(),
		http:      utils.NewHTTPHelper(""),
		stopWords: set,
	}
}

// Transform converts a validated raw listing into canonical form. Pointer
// fields are copied so the result never aliases the adapter's data.
func (t *Transformer) Transform(raw models.RawListing, meta FetchMeta) models.CanonicalListing {
	listing := models.CanonicalListing{
		Source:          strings.TrimSpace(raw.Source),
		Title:           t.strings.NormalizeWhitespace(raw.Title),
		Link:            strings.TrimSpace(raw.Link),
		NormalizedTitle: t.NormalizeTitle(raw.Title),
		FetchLatencyMs:  meta.Latency.Milliseconds(),
		QueryRank:       meta.QueryRank,
	}

	if img := strings.TrimSpace(raw.ImageURL); t.http.IsValidURL(img) {
		listing.ImageURL = img
	}

	if raw.Price != nil {
		price := *raw.Price
		price.Currency = strings.ToUpper(strings.TrimSpace(price.Currency))
		listing.Price = &price
	}

	if raw.Rating != nil {
		rating := *raw.Rating
		listing.Rating = &rating
	}

	if raw.ReviewCount != nil {
		count := *raw.ReviewCount
		listing.ReviewCount = &count
	}

	return listing
}

// NormalizeTitle applies NFKC, lower-cases, turns punctuation into spaces,
// collapses whitespace and drops stop-words. If every word is a stop-word the
// folded title is returned unchanged.
func (t *Transformer) NormalizeTitle(title string) string {
	tokens := t.strings.Tokens(title)

	kept := tokens[:0:0]
	for _, tok := range tokens {
		if !t.stopWords[tok] {
			kept = append(kept, tok)
		}
	}

	if len(kept) == 0 {
		kept = tokens
	}

	return strings.Join(kept, " ")
}
