// Package models defines the data structures exchanged between the recognition,
// fusion and aggregation stages.
package models

import "time"

// SignalKind identifies which recognizer produced a signal.
type SignalKind string

// Recognizer kinds, in descending order of trust for shopping search.
const (
	SignalText     SignalKind = "text"
	SignalCategory SignalKind = "category"
	SignalCaption  SignalKind = "caption"
)

// SignalKinds lists every kind in trust order.
var SignalKinds = []SignalKind{SignalText, SignalCategory, SignalCaption}

// Priority returns the kind's trust position (0 = most trusted).
func (k SignalKind) Priority() int {
	for i, kind := range SignalKinds {
		if kind == k {
			return i
		}
	}

	return len(SignalKinds)
}

// Image is a decoded product photo handed to the core by the transport layer.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Empty reports whether the image carries no pixel data.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// RecognitionSignal is one recognizer's observation about an image.
type RecognitionSignal struct {
	Timestamp  time.Time  `json:"timestamp"`
	Kind       SignalKind `json:"kind"`
	Label      string     `json:"label,omitempty"`
	Caption    string     `json:"caption,omitempty"`
	Tokens     []string   `json:"tokens,omitempty"`
	Confidence float64    `json:"confidence"`
}

// NewCategorySignal creates a category detector signal.
func NewCategorySignal(label string, confidence float64, at time.Time) RecognitionSignal {
	return RecognitionSignal{
		Kind:       SignalCategory,
		Label:      label,
		Confidence: clampConfidence(confidence),
		Timestamp:  at,
	}
}

// NewCaptionSignal creates a captioner signal.
func NewCaptionSignal(caption string, confidence float64, at time.Time) RecognitionSignal {
	return RecognitionSignal{
		Kind:       SignalCaption,
		Caption:    caption,
		Confidence: clampConfidence(confidence),
		Timestamp:  at,
	}
}

// NewTextSignal creates a text recognizer signal. The token slice is copied.
func NewTextSignal(tokens []string, confidence float64, at time.Time) RecognitionSignal {
	return RecognitionSignal{
		Kind:       SignalText,
		Tokens:     append([]string(nil), tokens...),
		Confidence: clampConfidence(confidence),
		Timestamp:  at,
	}
}

// RawValue returns the signal's payload as text.
func (s RecognitionSignal) RawValue() []string {
	switch s.Kind {
	case SignalCategory:
		return []string{s.Label}
	case SignalCaption:
		return []string{s.Caption}
	case SignalText:
		return append([]string(nil), s.Tokens...)
	}

	return nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}

	return c
}
