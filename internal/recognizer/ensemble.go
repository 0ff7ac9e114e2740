package recognizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shopvision/internal/logger"
	"shopvision/internal/models"
)

// DefaultTimeout bounds each recognizer when none is configured.
const DefaultTimeout = 5 * time.Second

// Ensemble runs a fixed set of recognizers concurrently.
type Ensemble struct {
	logger      *logger.Logger
	now         func() time.Time
	recognizers []Recognizer
	timeout     time.Duration
}

// NewEnsemble creates an ensemble. A non-positive timeout uses DefaultTimeout.
func NewEnsemble(timeout time.Duration, log *logger.Logger, recognizers ...Recognizer) *Ensemble {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Ensemble{
		logger:      log.Component("recognizer"),
		now:         time.Now,
		recognizers: recognizers,
		timeout:     timeout,
	}
}

// Size returns the number of recognizers.
func (e *Ensemble) Size() int {
	return len(e.recognizers)
}

type outcome struct {
	err    error
	signal models.RecognitionSignal
}

// Recognize runs every recognizer against img and waits for all of them,
// each bounded by the ensemble timeout. Signals come back ordered by kind;
// failures are returned as *Failure values and never abort the others.
func (e *Ensemble) Recognize(ctx context.Context, img models.Image) ([]models.RecognitionSignal, []error) {
	outcomes := make([]outcome, len(e.recognizers))

	var wg sync.WaitGroup

	for i, r := range e.recognizers {
		wg.Add(1)

		go func(i int, r Recognizer) {
			defer wg.Done()

			outcomes[i] = e.run(ctx, r, img)
		}(i, r)
	}

	wg.Wait()

	var (
		signals []models.RecognitionSignal
		errs    []error
	)

	for i, o := range outcomes {
		kind := e.recognizers[i].Kind()
		if o.err != nil {
			e.logger.Warn("recognizer failed", "kind", kind, "error", o.err)
			errs = append(errs, &Failure{Kind: kind, Err: o.err})

			continue
		}

		signals = append(signals, o.signal)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Kind.Priority() < signals[j].Kind.Priority()
	})

	e.logger.Debug("recognition complete", "signals", len(signals), "failures", len(errs))

	return signals, errs
}

func (e *Ensemble) run(ctx context.Context, r Recognizer, img models.Image) outcome {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()

		sig, err := r.Recognize(callCtx, img)
		done <- outcome{signal: sig, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return o
		}

		return e.check(r.Kind(), o.signal)
	case <-callCtx.Done():
		return outcome{err: callCtx.Err()}
	}
}

func (e *Ensemble) check(kind models.SignalKind, sig models.RecognitionSignal) outcome {
	if sig.Kind != kind {
		return outcome{err: fmt.Errorf("%w: want %s, got %q", ErrKindMismatch, kind, sig.Kind)}
	}

	if strings.TrimSpace(strings.Join(sig.RawValue(), "")) == "" {
		return outcome{err: ErrNoRecognition}
	}

	if sig.Timestamp.IsZero() {
		sig.Timestamp = e.now()
	}

	return outcome{signal: sig}
}
