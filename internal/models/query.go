package models

import "fmt"

// CanonicalQuery is one fused search intent for an image.
type CanonicalQuery struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Rank       int     `json:"rank"`
}

// String returns a compact representation for logs.
func (q CanonicalQuery) String() string {
	return fmt.Sprintf("#%d %q (%.2f)", q.Rank, q.Text, q.Confidence)
}
