package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadMono decodes a whole WAV file into mono samples normalized to
// [-1, 1] and returns them with the sample rate. It is meant for tooling;
// the analysis path streams through Windower instead.
func ReadMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", errNotWAV, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRead, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("%w: %s: no channels", ErrOpen, path)
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	samples := appendMono(make([]float64, 0, len(buf.Data)/channels), buf.Data, channels, bitDepth)
	return samples, buf.Format.SampleRate, nil
}
