// Package ranker merges duplicate listings and orders the survivors.
package ranker

import (
	"sort"
	"strings"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
)

// DefaultSimilarityThreshold is the title similarity above which two listings merge.
const DefaultSimilarityThreshold = 0.6

// Ranker deduplicates and orders canonical listings. It holds no per-call state.
type Ranker struct {
	logger    *logger.Logger
	priority  map[string]int
	threshold float64
}

// New creates a ranker from the ranking config.
func New(cfg config.RankingConfig, log *logger.Logger) *Ranker {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}

	if log == nil {
		log = logger.Discard()
	}

	priority := make(map[string]int, len(cfg.SourcePriority))
	for i, name := range cfg.SourcePriority {
		if _, ok := priority[name]; !ok {
			priority[name] = i
		}
	}

	return &Ranker{
		logger:    log.Component("ranker"),
		priority:  priority,
		threshold: threshold,
	}
}

// Similarity is the Jaccard index of the word sets of two normalized titles.
func Similarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	shared := 0

	for w := range wa {
		if wb[w] {
			shared++
		}
	}

	return float64(shared) / float64(len(wa)+len(wb)-shared)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}

	return set
}

// Duplicates reports whether a and b describe the same offer: identical links,
// or titles more similar than the threshold.
func (r *Ranker) Duplicates(a, b models.CanonicalListing) bool {
	if la, lb := strings.TrimSpace(a.Link), strings.TrimSpace(b.Link); la != "" && la == lb {
		return true
	}

	return Similarity(a.NormalizedTitle, b.NormalizedTitle) > r.threshold
}

// Dedup merges duplicates until no pair is left. The merged record keeps the
// position of the first-seen member. Dedup(Dedup(x)) equals Dedup(x).
func (r *Ranker) Dedup(listings []models.CanonicalListing) []models.CanonicalListing {
	current := append([]models.CanonicalListing(nil), listings...)

	for pass := 1; ; pass++ {
		next := make([]models.CanonicalListing, 0, len(current))
		merged := 0

		for _, l := range current {
			idx := -1

			for j := range next {
				if r.Duplicates(next[j], l) {
					idx = j

					break
				}
			}

			if idx < 0 {
				next = append(next, l)

				continue
			}

			next[idx] = preferred(next[idx], l)
			merged++
		}

		current = next

		if merged == 0 {
			break
		}

		r.logger.Debug("dedup pass", "pass", pass, "merged", merged, "remaining", len(current))
	}

	return current
}

// preferred picks the record to keep: more of {price, rating} present, then
// the lower query rank, then the first-seen record a.
func preferred(a, b models.CanonicalListing) models.CanonicalListing {
	ca, cb := completeness(a), completeness(b)
	if ca != cb {
		if cb > ca {
			return b
		}

		return a
	}

	if b.QueryRank < a.QueryRank {
		return b
	}

	return a
}

func completeness(l models.CanonicalListing) int {
	n := 0
	if l.HasPrice() {
		n++
	}

	if l.HasRating() {
		n++
	}

	return n
}

// Rank deduplicates listings and orders them by rating presence, rating,
// price presence, configured source priority and finally input order.
func (r *Ranker) Rank(listings []models.CanonicalListing) []models.CanonicalListing {
	ranked := r.Dedup(listings)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		if a.HasRating() != b.HasRating() {
			return a.HasRating()
		}

		if a.HasRating() && *a.Rating != *b.Rating {
			return *a.Rating > *b.Rating
		}

		if a.HasPrice() != b.HasPrice() {
			return a.HasPrice()
		}

		return r.sourcePriority(a.Source) < r.sourcePriority(b.Source)
	})

	return ranked
}

func (r *Ranker) sourcePriority(source string) int {
	if p, ok := r.priority[source]; ok {
		return p
	}

	return len(r.priority)
}
