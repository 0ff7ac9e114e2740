package normalizer

import (
	"errors"
	"testing"

	"shopvision/internal/models"
)

func TestNewValidator(t *testing.T) {
	v := NewValidator()
	if v == nil {
		t.Fatal("NewValidator returned nil")
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	valid := models.RawListing{Source: "amazon", Title: "SonicMax X200", Link: "https://www.amazon.in/dp/B0SONIC01"}

	tests := []struct {
		name    string
		mutate  func(l *models.RawListing)
		wantErr error
	}{
		{"valid", func(*models.RawListing) {}, nil},
		{"missing source", func(l *models.RawListing) { l.Source = "" }, ErrMissingSource},
		{"blank title", func(l *models.RawListing) { l.Title = "   " }, ErrMissingTitle},
		{"missing link", func(l *models.RawListing) { l.Link = "" }, ErrMissingLink},
		{"relative link", func(l *models.RawListing) { l.Link = "/dp/B0SONIC01" }, ErrInvalidLink},
		{"javascript link", func(l *models.RawListing) { l.Link = "javascript:void(0)" }, ErrInvalidLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)

			err := v.Validate(l)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate returned unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}

			if !errors.Is(err, ErrMalformedListing) {
				t.Errorf("Validate() = %v, should wrap ErrMalformedListing", err)
			}
		})
	}
}
