package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
)

// sliceSource hands out n one-sample windows, one per second.
type sliceSource struct {
	n, next int
	err     error // returned instead of window errAt
	errAt   int
}

func (s *sliceSource) Next() (audio.Window, bool, error) {
	if s.err != nil && s.next == s.errAt {
		return audio.Window{}, false, s.err
	}
	if s.next >= s.n {
		return audio.Window{}, false, nil
	}
	w := audio.Window{
		Index:      s.next,
		Start:      audio.Time{Value: int64(s.next) * 600, Scale: 600},
		Duration:   audio.Time{Value: 600, Scale: 600},
		SampleRate: 16000,
		Samples:    []float64{0.25},
	}
	s.next++
	return w, true, nil
}

// echo scores every window with its own index as confidence/100, sleeping
// longer for early windows so concurrent runs finish out of order.
func echo(delay bool) classify.Classifier {
	return classify.Func(func(_ context.Context, w audio.Window) (classify.Result, error) {
		if delay {
			time.Sleep(time.Duration(10-w.Index%10) * time.Millisecond)
		}
		return classify.Result{
			Start:  w.Start,
			Scores: []classify.Score{{Label: "laughter", Confidence: float64(w.Index) / 100}},
		}, nil
	})
}

type recorder struct {
	starts []int64
}

func (r *recorder) Observe(res classify.Result) { r.starts = append(r.starts, res.Start.Value) }

func TestRunPreservesOrder(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			rec := &recorder{}
			stats, err := Run(context.Background(), &sliceSource{n: 40}, echo(workers > 1), rec, WithWorkers(workers))
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if stats.Windows != 40 || len(rec.starts) != 40 {
				t.Fatalf("Expected 40 windows, got stats=%d observed=%d", stats.Windows, len(rec.starts))
			}
			for i, v := range rec.starts {
				if v != int64(i)*600 {
					t.Fatalf("Result %d has start %d; order not preserved: %v", i, v, rec.starts)
				}
			}
		})
	}
}

func TestRunCallsEngineOncePerWindow(t *testing.T) {
	var calls [25]int32
	engine := classify.Func(func(_ context.Context, w audio.Window) (classify.Result, error) {
		atomic.AddInt32(&calls[w.Index], 1)
		return classify.Result{Start: w.Start}, nil
	})
	if _, err := Run(context.Background(), &sliceSource{n: 25}, engine, ObserverFunc(func(classify.Result) {}), WithWorkers(3), WithQueueSize(1)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, c := range calls {
		if c != 1 {
			t.Errorf("Window %d classified %d times", i, c)
		}
	}
}

func TestRunEngineErrorIsFatal(t *testing.T) {
	boom := errors.New("model failure")
	engine := classify.Func(func(_ context.Context, w audio.Window) (classify.Result, error) {
		if w.Index == 5 {
			return classify.Result{}, boom
		}
		return classify.Result{Start: w.Start}, nil
	})

	for _, workers := range []int{1, 4} {
		_, err := Run(context.Background(), &sliceSource{n: 50}, engine, &recorder{}, WithWorkers(workers))
		var ce *classify.Error
		if !errors.As(err, &ce) {
			t.Fatalf("workers=%d: expected *classify.Error, got %v", workers, err)
		}
		if ce.Index != 5 || !errors.Is(err, boom) {
			t.Errorf("workers=%d: unexpected error %v", workers, err)
		}
	}
}

func TestRunRejectsOutOfRangeScores(t *testing.T) {
	engine := classify.Func(func(_ context.Context, w audio.Window) (classify.Result, error) {
		return classify.Result{Start: w.Start, Scores: []classify.Score{{Label: "laughter", Confidence: 1.5}}}, nil
	})
	_, err := Run(context.Background(), &sliceSource{n: 3}, engine, &recorder{})
	var ce *classify.Error
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *classify.Error, got %v", err)
	}
}

func TestRunSourceError(t *testing.T) {
	readErr := errors.New("truncated file")
	for _, workers := range []int{1, 3} {
		_, err := Run(context.Background(), &sliceSource{n: 10, err: readErr, errAt: 4}, echo(false), &recorder{}, WithWorkers(workers))
		if !errors.Is(err, readErr) {
			t.Errorf("workers=%d: expected source error, got %v", workers, err)
		}
	}
}

func TestRunCancelledBetweenWindows(t *testing.T) {
	for _, workers := range []int{1, 2} {
		ctx, cancel := context.WithCancel(context.Background())
		var sawCancelled atomic.Bool
		engine := classify.Func(func(ectx context.Context, w audio.Window) (classify.Result, error) {
			if w.Index == 2 {
				cancel()
			}
			if ectx.Err() != nil {
				sawCancelled.Store(true)
			}
			return classify.Result{Start: w.Start}, nil
		})

		stats, err := Run(ctx, &sliceSource{n: 1000}, engine, &recorder{}, WithWorkers(workers))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
		if stats.Windows >= 1000 {
			t.Errorf("workers=%d: run was not cut short", workers)
		}
		if sawCancelled.Load() {
			t.Errorf("workers=%d: engine observed cancellation mid-window", workers)
		}
	}
}

func TestRunFillsMissingStart(t *testing.T) {
	engine := classify.Func(func(context.Context, audio.Window) (classify.Result, error) {
		return classify.Result{}, nil
	})
	rec := &recorder{}
	if _, err := Run(context.Background(), &sliceSource{n: 2}, engine, rec); err != nil {
		t.Fatal(err)
	}
	if rec.starts[1] != 600 {
		t.Errorf("Expected start copied from window, got %v", rec.starts)
	}
}
