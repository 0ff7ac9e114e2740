// Package normalizer turns raw adapter listings into canonical listings.
package normalizer

import (
	"fmt"

	"shopvision/internal/logger"
	"shopvision/internal/models"
)

// Fetched pairs a raw listing with the metadata of the call that produced it.
type Fetched struct {
	Raw  models.RawListing
	Meta FetchMeta
}

// Processor handles data processing and transformation.
type Processor struct {
	validator   *Validator
	transformer *Transformer
	logger      *logger.Logger
}

// NewProcessor creates a new processor instance.
func NewProcessor(stopWords []string, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}

	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(stopWords),
		logger:      log.Component("normalizer"),
	}
}

// Process validates raw and converts it to canonical form.
func (p *Processor) Process(raw models.RawListing, meta FetchMeta) (models.CanonicalListing, error) {
	if err := p.validator.Validate(raw); err != nil {
		return models.CanonicalListing{}, fmt.Errorf("validation failed: %w", err)
	}

	return p.transformer.Transform(raw, meta), nil
}

// ProcessBatch normalizes batch in order, dropping malformed records. It
// returns the surviving listings and how many were dropped.
func (p *Processor) ProcessBatch(batch []Fetched) ([]models.CanonicalListing, int) {
	listings := make([]models.CanonicalListing, 0, len(batch))
	dropped := 0

	for _, f := range batch {
		listing, err := p.Process(f.Raw, f.Meta)
		if err != nil {
			dropped++

			p.logger.Debug("dropping listing", "source", f.Raw.Source, "title", f.Raw.Title, "error", err)

			continue
		}

		listings = append(listings, listing)
	}

	return listings, dropped
}

// NormalizeTitle exposes the title normalization used for NormalizedTitle.
func (p *Processor) NormalizeTitle(title string) string {
	return p.transformer.NormalizeTitle(title)
}
