// Package pipeline drives windows through a classifier and hands the
// results to an observer in strict window order.
//
// With one worker everything runs on the calling goroutine. With more, a
// producer decodes windows into a bounded queue, workers classify them
// concurrently, and a consumer re-orders results by window index before
// they reach the observer.
package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
)

// WindowSource yields windows in order. *audio.Windower satisfies it.
type WindowSource interface {
	Next() (audio.Window, bool, error)
}

// Observer receives results in window order. It is only ever called from
// one goroutine at a time.
type Observer interface {
	Observe(classify.Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(classify.Result)

func (f ObserverFunc) Observe(r classify.Result) { f(r) }

// Stats summarizes a finished run.
type Stats struct {
	Windows int
	Workers int
	Elapsed time.Duration
}

type options struct {
	workers   int
	queueSize int
}

// Option configures Run.
type Option func(*options)

// WithWorkers sets the number of concurrent classifications. Values below
// two run synchronously.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithQueueSize bounds how many decoded windows may wait for a worker.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

type job struct {
	seq    int
	window audio.Window
}

type indexed struct {
	seq    int
	result classify.Result
}

// Run classifies every window of src with engine and feeds the results to
// sink. It stops at the first error; cancellation of ctx is only honoured
// between windows, and engines never see it.
func Run(ctx context.Context, src WindowSource, engine classify.Classifier, sink Observer, opts ...Option) (Stats, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.queueSize < 1 {
		o.queueSize = 2 * o.workers
	}

	start := time.Now()
	var (
		n   int
		err error
	)
	if o.workers == 1 {
		n, err = runSync(ctx, src, engine, sink)
	} else {
		n, err = runConcurrent(ctx, src, engine, sink, o)
	}
	return Stats{Windows: n, Workers: o.workers, Elapsed: time.Since(start)}, err
}

func runSync(ctx context.Context, src WindowSource, engine classify.Classifier, sink Observer) (int, error) {
	engineCtx := context.WithoutCancel(ctx)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		w, ok, err := src.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		r, err := classifyOne(engineCtx, engine, w)
		if err != nil {
			return n, err
		}
		sink.Observe(r)
		n++
	}
}

func runConcurrent(ctx context.Context, src WindowSource, engine classify.Classifier, sink Observer, o options) (int, error) {
	engineCtx := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan job, o.queueSize)
	results := make(chan indexed, o.workers)
	// one slot per window between decode and observe, so the reorder
	// buffer stays bounded even when an early window is slow
	inflight := make(chan struct{}, o.queueSize+o.workers)

	g.Go(func() error {
		defer close(jobs)
		for seq := 0; ; seq++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case inflight <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			w, ok, err := src.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case jobs <- job{seq: seq, window: w}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := classifyOne(engineCtx, engine, j.window)
				if err != nil {
					return err
				}
				select {
				case results <- indexed{seq: j.seq, result: r}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	observed := 0
	g.Go(func() error {
		pending := make(map[int]classify.Result)
		for r := range results {
			pending[r.seq] = r.result
			for {
				res, ok := pending[observed]
				if !ok {
					break
				}
				delete(pending, observed)
				sink.Observe(res)
				observed++
				<-inflight
			}
		}
		return nil
	})

	err := g.Wait()
	return observed, err
}

func classifyOne(ctx context.Context, engine classify.Classifier, w audio.Window) (classify.Result, error) {
	r, err := engine.Classify(ctx, w)
	if err != nil {
		return classify.Result{}, classify.Wrap(w, err)
	}
	if err := classify.CheckResult(r); err != nil {
		return classify.Result{}, classify.Wrap(w, err)
	}
	if r.Start.Scale == 0 {
		r.Start = w.Start
	}
	return r, nil
}
