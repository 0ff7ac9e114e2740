package models

import "fmt"

// Price is a currency-tagged amount.
type Price struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// String formats the price for display.
func (p Price) String() string {
	if p.Currency == "" {
		return fmt.Sprintf("%.2f", p.Amount)
	}

	return fmt.Sprintf("%s %.2f", p.Currency, p.Amount)
}

// RawListing is a listing exactly as one source adapter returned it.
type RawListing struct {
	Price       *Price   `json:"price,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	Source      string   `json:"source"`
	Title       string   `json:"title"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Link        string   `json:"link"`
}

// CanonicalListing is the normalized, source-agnostic form of a listing.
type CanonicalListing struct {
	Price           *Price   `json:"price,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     *int     `json:"reviewCount,omitempty"`
	Source          string   `json:"source"`
	Title           string   `json:"title"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Link            string   `json:"link"`
	NormalizedTitle string   `json:"normalizedTitle"`
	FetchLatencyMs  int64    `json:"fetchLatencyMs"`
	QueryRank       int      `json:"queryRank"`
}

// HasPrice reports whether the listing carries a price.
func (l CanonicalListing) HasPrice() bool {
	return l.Price != nil
}

// HasRating reports whether the listing carries a rating.
func (l CanonicalListing) HasRating() bool {
	return l.Rating != nil
}
