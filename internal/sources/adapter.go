// Package sources holds the shopping source adapters and their shared HTTP plumbing.
package sources

import (
	"context"

	"shopvision/internal/models"
)

// Adapter fetches listings for one query from one shopping source.
// Implementations are safe for concurrent use and keep no per-call state.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]models.RawListing, error)
}

// Func adapts a function to the Adapter interface.
type Func struct {
	SearchFunc func(ctx context.Context, query string, maxResults int) ([]models.RawListing, error)
	Source     string
}

// Name returns the source name.
func (f Func) Name() string { return f.Source }

// Search calls SearchFunc.
func (f Func) Search(ctx context.Context, query string, maxResults int) ([]models.RawListing, error) {
	return f.SearchFunc(ctx, query, maxResults)
}

func truncateListings(listings []models.RawListing, maxResults int) []models.RawListing {
	if maxResults > 0 && len(listings) > maxResults {
		return listings[:maxResults]
	}

	return listings
}
