package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrOpen reports a missing, unreadable or unsupported input file.
	ErrOpen = errors.New("cannot open audio file")
	// ErrRead reports a decoding failure after the file was opened.
	ErrRead = errors.New("cannot read audio samples")
	// ErrConfig reports invalid windowing parameters.
	ErrConfig = errors.New("invalid window configuration")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Info describes the decoded stream.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int64
	Duration   time.Duration
	SizeBytes  int64
}

// Source wraps one decoded audio file. It owns the file handle and the
// decoder state; windows are pulled from it through a Windower.
type Source struct {
	path    string
	f       *os.File
	dec     *wav.Decoder
	info    Info
	tmpPath string
	claimed bool
	closed  bool
}

type openOptions struct {
	convert    bool
	tempDir    string
	sampleRate int
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithConverter enables the ffmpeg fallback for inputs that are not WAV
// files. Converted audio is written under tempDir and removed on Close.
func WithConverter(tempDir string, sampleRate int) OpenOption {
	return func(o *openOptions) {
		o.convert = true
		o.tempDir = tempDir
		o.sampleRate = sampleRate
	}
}

// Open opens path for windowed reading. Errors wrap ErrOpen.
func Open(ctx context.Context, path string, opts ...OpenOption) (*Source, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	src, err := openWAV(path)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, errNotWAV) || !o.convert {
		return nil, err
	}

	wavPath, convErr := ConvertToMonoWAV(ctx, path, o.tempDir, ConvertWAVConfig{SampleRate: o.sampleRate})
	if convErr != nil {
		return nil, fmt.Errorf("%w: converting %s: %w", ErrOpen, path, convErr)
	}
	src, err = openWAV(wavPath)
	if err != nil {
		os.Remove(wavPath)
		return nil, err
	}
	src.path = path
	src.tmpPath = wavPath
	return src, nil
}

var errNotWAV = fmt.Errorf("%w: unsupported audio format", ErrOpen)

func openWAV(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpen, path)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.Err() != nil || dec.NumChans == 0 || dec.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", errNotWAV, path)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		f.Close()
		return nil, fmt.Errorf("%w: %s: WAV format %d is not integer PCM", ErrOpen, path, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported bit depth %d", ErrOpen, path, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: locating PCM data: %w", ErrOpen, path, err)
	}

	frameBytes := int64(dec.NumChans) * int64(dec.BitDepth/8)
	frames := dec.PCMLen() / frameBytes

	return &Source{
		path: path,
		f:    f,
		dec:  dec,
		info: Info{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   int(dec.BitDepth),
			Frames:     frames,
			Duration:   time.Duration(float64(frames) / float64(dec.SampleRate) * float64(time.Second)),
			SizeBytes:  st.Size(),
		},
	}, nil
}

// Path returns the path the source was opened with.
func (s *Source) Path() string { return s.path }

// Info returns the stream format.
func (s *Source) Info() Info { return s.info }

// Windows validates cfg and returns the window sequence. A source yields
// exactly one sequence; it cannot be restarted.
func (s *Source) Windows(cfg WindowConfig) (*Windower, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: source is closed", ErrRead)
	}
	if s.claimed {
		return nil, fmt.Errorf("%w: window sequence already started", ErrRead)
	}
	w, err := newWindower(s, cfg)
	if err != nil {
		return nil, err
	}
	s.claimed = true
	return w, nil
}

// Close releases the file handle and any converted temp file.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.f.Close()
	if s.tmpPath != "" {
		if rmErr := os.Remove(s.tmpPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}

// readFrames decodes up to len(raw.Data)/channels frames and appends them,
// downmixed to mono, to dst.
func (s *Source) readFrames(raw *goaudio.IntBuffer, dst []float64) ([]float64, int, error) {
	n, err := s.dec.PCMBuffer(raw)
	if err != nil {
		return dst, 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	frames := n / s.info.Channels
	dst = appendMono(dst, raw.Data[:frames*s.info.Channels], s.info.Channels, s.info.BitDepth)
	return dst, frames, nil
}

// appendMono averages interleaved channels and normalizes to [-1, 1].
func appendMono(dst []float64, data []int, channels, bitDepth int) []float64 {
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}
	for i := 0; i+channels <= len(data); i += channels {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(data[i+c]-offset) * scale
		}
		dst = append(dst, sum/float64(channels))
	}
	return dst
}
