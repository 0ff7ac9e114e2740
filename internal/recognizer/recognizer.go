// Package recognizer runs the image recognizers and collects their signals.
package recognizer

import (
	"context"
	"errors"
	"fmt"

	"shopvision/internal/models"
)

// Recognition errors.
var (
	ErrRecognizerFailure = errors.New("recognizer failed")
	ErrNoRecognition     = errors.New("recognizer produced no usable result")
	ErrKindMismatch      = errors.New("recognizer returned a signal of another kind")
)

// Recognizer produces one signal of a fixed kind from an image.
type Recognizer interface {
	Kind() models.SignalKind
	Recognize(ctx context.Context, img models.Image) (models.RecognitionSignal, error)
}

// Func adapts a function to the Recognizer interface.
type Func struct {
	RecognizeFunc func(ctx context.Context, img models.Image) (models.RecognitionSignal, error)
	SignalKind    models.SignalKind
}

// Kind returns the signal kind.
func (f Func) Kind() models.SignalKind { return f.SignalKind }

// Recognize calls RecognizeFunc.
func (f Func) Recognize(ctx context.Context, img models.Image) (models.RecognitionSignal, error) {
	return f.RecognizeFunc(ctx, img)
}

// Failure records one recognizer that produced no signal.
type Failure struct {
	Err  error
	Kind models.SignalKind
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s recognizer: %v", f.Kind, f.Err)
}

// Unwrap exposes ErrRecognizerFailure and the cause.
func (f *Failure) Unwrap() []error {
	return []error{ErrRecognizerFailure, f.Err}
}
