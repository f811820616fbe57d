package audio

import (
	"fmt"
	"math"
	"math/big"

	goaudio "github.com/go-audio/audio"
)

// PartialPolicy decides what happens to a trailing window that runs past
// the end of the file.
type PartialPolicy int

const (
	// PadPartial emits the trailing window zero-padded to full length.
	PadPartial PartialPolicy = iota
	// DropPartial emits only windows fully covered by audio.
	DropPartial
)

func (p PartialPolicy) String() string {
	switch p {
	case PadPartial:
		return "pad"
	case DropPartial:
		return "drop"
	default:
		return fmt.Sprintf("PartialPolicy(%d)", int(p))
	}
}

// ParsePartialPolicy accepts "pad" or "drop".
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch s {
	case "", "pad":
		return PadPartial, nil
	case "drop":
		return DropPartial, nil
	}
	return 0, fmt.Errorf("%w: unknown partial window policy %q", ErrConfig, s)
}

// WindowConfig controls how a source is cut into windows.
type WindowConfig struct {
	Duration  float64 // seconds, > 0
	Timescale int32   // ticks per second for reported timestamps, > 0
	Overlap   float64 // fraction of a window shared with the next, in [0, 1)
	Partial   PartialPolicy
}

// Validate reports the first invalid field.
func (c WindowConfig) Validate() error {
	if math.IsNaN(c.Duration) || math.IsInf(c.Duration, 0) || c.Duration <= 0 {
		return fmt.Errorf("%w: window duration must be positive, got %v", ErrConfig, c.Duration)
	}
	if c.Timescale <= 0 {
		return fmt.Errorf("%w: timescale must be positive, got %d", ErrConfig, c.Timescale)
	}
	if math.IsNaN(c.Overlap) || c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("%w: overlap factor must be in [0, 1), got %v", ErrConfig, c.Overlap)
	}
	if c.Partial != PadPartial && c.Partial != DropPartial {
		return fmt.Errorf("%w: unknown partial window policy %d", ErrConfig, c.Partial)
	}
	return nil
}

// Window is one slice of mono audio handed to a classifier.
type Window struct {
	Index      int
	Start      Time
	Duration   Time
	SampleRate int
	Samples    []float64
}

const readChunkFrames = 4096

// MaxWindowSamples bounds a single window. Padded windows are allocated at
// full length, so an oversized duration is rejected before any decoding.
const MaxWindowSamples = 1 << 25

// Windower produces the lazy window sequence of a Source.
type Windower struct {
	src *Source
	cfg WindowConfig

	hop           *big.Rat // seconds between window starts
	windowSamples int64
	duration      Time

	index int
	done  bool

	raw      *goaudio.IntBuffer
	buf      []float64 // decoded mono samples starting at bufStart
	bufStart int64
	decoded  int64
	eof      bool
}

func newWindower(s *Source, cfg WindowConfig) (*Windower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dur, err := ratFromFloat(cfg.Duration)
	if err != nil {
		return nil, err
	}
	overlap, err := ratFromFloat(cfg.Overlap)
	if err != nil {
		return nil, err
	}

	// hop = D * (1 - O), kept exact so window k starts at exactly k*hop
	hop := new(big.Rat).Sub(big.NewRat(1, 1), overlap)
	hop.Mul(hop, dur)

	rate := big.NewRat(int64(s.info.SampleRate), 1)
	windowSamples, ok := roundRat(new(big.Rat).Mul(dur, rate))
	if !ok || windowSamples > MaxWindowSamples {
		return nil, fmt.Errorf("%w: window of %vs exceeds %d samples at %d Hz", ErrConfig, cfg.Duration, MaxWindowSamples, s.info.SampleRate)
	}
	if windowSamples < 1 {
		return nil, fmt.Errorf("%w: window of %vs is shorter than one sample at %d Hz", ErrConfig, cfg.Duration, s.info.SampleRate)
	}

	return &Windower{
		src:           s,
		cfg:           cfg,
		hop:           hop,
		windowSamples: windowSamples,
		duration:      NewTime(dur, cfg.Timescale),
		raw: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: s.info.Channels,
				SampleRate:  s.info.SampleRate,
			},
			Data:           make([]int, readChunkFrames*s.info.Channels),
			SourceBitDepth: s.info.BitDepth,
		},
	}, nil
}

// WindowSamples is the number of samples in every window.
func (w *Windower) WindowSamples() int64 { return w.windowSamples }

// Next returns the next window. ok is false once the sequence is exhausted.
func (w *Windower) Next() (win Window, ok bool, err error) {
	if w.done {
		return Window{}, false, nil
	}
	if w.src.closed {
		return Window{}, false, fmt.Errorf("%w: source is closed", ErrRead)
	}

	total := w.src.info.Frames
	startSec := new(big.Rat).Mul(w.hop, big.NewRat(int64(w.index), 1))
	start, ok := roundRat(new(big.Rat).Mul(startSec, big.NewRat(int64(w.src.info.SampleRate), 1)))
	end := start + w.windowSamples

	if !ok || start >= total {
		w.done = true
		return Window{}, false, nil
	}
	if end > total && w.cfg.Partial == DropPartial {
		w.done = true
		return Window{}, false, nil
	}
	if end >= total {
		// last window: either exactly flush with the end or zero-padded
		w.done = true
	}

	samples, err := w.read(start, end)
	if err != nil {
		w.done = true
		return Window{}, false, err
	}

	win = Window{
		Index:      w.index,
		Start:      NewTime(startSec, w.cfg.Timescale),
		Duration:   w.duration,
		SampleRate: w.src.info.SampleRate,
		Samples:    samples,
	}
	w.index++
	return win, true, nil
}

// read returns samples [start, end), zero-padded past the end of the
// stream. Window starts never decrease, so everything before start is
// discarded.
func (w *Windower) read(start, end int64) ([]float64, error) {
	for w.bufStart+int64(len(w.buf)) < end && !w.eof {
		var (
			n   int
			err error
		)
		w.buf, n, err = w.src.readFrames(w.raw, w.buf)
		if err != nil {
			return nil, err
		}
		w.decoded += int64(n)
		if n == 0 || w.decoded >= w.src.info.Frames {
			w.eof = true
		}
		w.discard(start)
	}
	w.discard(start)

	out := make([]float64, end-start)
	if start >= w.bufStart {
		from := start - w.bufStart
		if from < int64(len(w.buf)) {
			copy(out, w.buf[from:])
		}
	}
	return out, nil
}

func (w *Windower) discard(before int64) {
	skip := before - w.bufStart
	if skip <= 0 {
		return
	}
	if skip > int64(len(w.buf)) {
		skip = int64(len(w.buf))
	}
	w.buf = w.buf[skip:]
	w.bufStart += skip
}
