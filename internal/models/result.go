package models

import "sort"

// SourceFailure records why a source contributed nothing.
type SourceFailure struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// AggregationResult is the only structure handed back across the core boundary.
type AggregationResult struct {
	Listings         []CanonicalListing `json:"listings"`
	QueriesUsed      []CanonicalQuery   `json:"queriesUsed"`
	SourcesSucceeded []string           `json:"sourcesSucceeded"`
	SourcesFailed    []SourceFailure    `json:"sourcesFailed"`
	TotalLatencyMs   int64              `json:"totalLatencyMs"`
	DroppedListings  int                `json:"droppedListings"`
}

// FailedSources returns the names of failed sources in sorted order.
func (r *AggregationResult) FailedSources() []string {
	names := make([]string, 0, len(r.SourcesFailed))
	for _, f := range r.SourcesFailed {
		names = append(names, f.Source)
	}

	sort.Strings(names)

	return names
}

// Failure returns the failure recorded for source, if any.
func (r *AggregationResult) Failure(source string) (SourceFailure, bool) {
	for _, f := range r.SourcesFailed {
		if f.Source == source {
			return f, true
		}
	}

	return SourceFailure{}, false
}

// Empty reports whether the result holds no listings.
func (r *AggregationResult) Empty() bool {
	return len(r.Listings) == 0
}
