// Package classify defines the boundary to the acoustic model: one window in,
// one set of labelled confidence scores out.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
)

// Score is one label the model assigned to a window.
type Score struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is the model output for a single window. Scores keep the model's
// own ordering.
type Result struct {
	Start  audio.Time
	Scores []Score
}

// Classifier scores a window. Implementations must not retain w.Samples
// after returning.
type Classifier interface {
	Classify(ctx context.Context, w audio.Window) (Result, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(ctx context.Context, w audio.Window) (Result, error)

func (f Func) Classify(ctx context.Context, w audio.Window) (Result, error) {
	return f(ctx, w)
}

// ErrInvalidWindow is wrapped when a window cannot be fed to a model.
var ErrInvalidWindow = errors.New("invalid window")

// Error is a classification failure for one window. It aborts the run.
type Error struct {
	Index int
	Start audio.Time
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classifying window %d at %.3fs: %v", e.Index, e.Start.Seconds(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap turns err into an *Error for window w unless it already is one.
func Wrap(w audio.Window, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Index: w.Index, Start: w.Start, Err: err}
}

// CheckWindow rejects windows no model can score: empty ones and ones
// carrying NaN or infinite samples.
func CheckWindow(w audio.Window) error {
	if len(w.Samples) == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidWindow)
	}
	for i, s := range w.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: sample %d is not finite", ErrInvalidWindow, i)
		}
	}
	return nil
}

// CheckResult rejects scores outside [0, 1].
func CheckResult(r Result) error {
	for _, s := range r.Scores {
		if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
			return fmt.Errorf("label %q has confidence %v outside [0, 1]", s.Label, s.Confidence)
		}
	}
	return nil
}
