package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"shopvision/internal/models"
	"shopvision/pkg/utils"
)

// ErrMalformedListing wraps every reason a raw listing is rejected.
var ErrMalformedListing = errors.New("malformed listing")

// Validation errors.
var (
	ErrMissingSource = errors.New("missing source")
	ErrMissingTitle  = errors.New("missing title")
	ErrMissingLink   = errors.New("missing link")
	ErrInvalidLink   = errors.New("link is not an absolute http(s) URL")
)

// Validator handles listing validation.
type Validator struct {
	http *utils.HTTPHelper
}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{http: utils.NewHTTPHelper("")}
}

// Validate checks that raw can become a canonical listing.
func (v *Validator) Validate(raw models.RawListing) error {
	if strings.TrimSpace(raw.Source) == "" {
		return fmt.Errorf("%w: %w", ErrMalformedListing, ErrMissingSource)
	}

	if strings.TrimSpace(raw.Title) == "" {
		return fmt.Errorf("%w: %w", ErrMalformedListing, ErrMissingTitle)
	}

	link := strings.TrimSpace(raw.Link)
	if link == "" {
		return fmt.Errorf("%w: %w", ErrMalformedListing, ErrMissingLink)
	}

	if !v.http.IsValidURL(link) {
		return fmt.Errorf("%w: %w %q", ErrMalformedListing, ErrInvalidLink, link)
	}

	return nil
}
