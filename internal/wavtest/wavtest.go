// Package wavtest writes small WAV fixtures for tests.
package wavtest

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Write encodes interleaved integer PCM into a WAV file under t.TempDir and
// returns its path.
func Write(t testing.TB, name string, rate, channels, bitDepth int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalize fixture: %v", err)
	}
	return path
}

// Silence writes seconds of 16-bit mono silence.
func Silence(t testing.TB, rate int, seconds float64) string {
	t.Helper()
	return Write(t, "silence.wav", rate, 1, 16, make([]int, int(float64(rate)*seconds)))
}
