// Command spectrogram renders a PNG spectrogram of a WAV file and, given a
// results object from the laughtrack CLI ("-" reads it from stdin), marks
// each detection on it.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/eligwz/spectrogram"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/logger"
)

type options struct {
	results string
	output  string
	width   int
	height  int
	window  float64
	log10   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "spectrogram <input.wav> <output.png> [results.json]",
		Short: "Render a spectrogram with detected events marked",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.output = args[1]
			if len(args) == 3 {
				opts.results = args[2]
			}
			return render(args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", 2048, "Image width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 512, "Image height in pixels (frequency bins)")
	cmd.Flags().Float64Var(&opts.window, "window", 1.0, "Window length in seconds used for the analysis")
	cmd.Flags().BoolVar(&opts.log10, "log10", false, "Use a log10 magnitude scale")
	return cmd
}

func render(path string, opts options) error {
	if opts.width <= 0 || opts.height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", opts.width, opts.height)
	}

	samples, rate, err := audio.ReadMono(path)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in %s", path)
	}
	duration := float64(len(samples)) / float64(rate)
	logger.Infof("Read %d samples at %d Hz (%.2fs)", len(samples), rate, duration)

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.width, opts.height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude.
	spectrogram.Drawfft(img, samples, uint32(rate), uint32(opts.height), false, false, true, opts.log10)

	if opts.results != "" {
		results, err := readResults(opts.results)
		if err != nil {
			return err
		}
		marks := markers(results, duration, opts.window, opts.width)
		drawMarkers(img, marks, opts.height)
		logger.Infof("Marked %d detection(s)", len(marks))
	}

	out := opts.output
	if err := spectrogram.SavePng(img, out); err != nil {
		return fmt.Errorf("saving %s: %w", out, err)
	}
	logger.Infof("Saved spectrogram to %s", out)
	return nil
}

func readResults(path string) (map[string]float64, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var results map[string]float64
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	return results, nil
}

// marker is a column span to highlight, with the detection's confidence.
type marker struct {
	from, to   int
	confidence float64
}

// markers maps detections to pixel columns. Keys that are not numbers or
// fall outside the audio are skipped.
func markers(results map[string]float64, duration, window float64, width int) []marker {
	if duration <= 0 || width <= 0 {
		return nil
	}
	scale := float64(width) / duration

	var out []marker
	for key, conf := range results {
		start, err := strconv.ParseFloat(key, 64)
		if err != nil || math.IsNaN(start) || start < 0 || start >= duration {
			continue
		}
		end := math.Min(start+window, duration)
		m := marker{
			from:       int(start * scale),
			to:         int(math.Ceil(end*scale)) - 1,
			confidence: conf,
		}
		if m.to < m.from {
			m.to = m.from
		}
		if m.to >= width {
			m.to = width - 1
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].from < out[j].from })
	return out
}

// drawMarkers paints a band along the top edge for each marker, brighter for
// higher confidence, plus a line at its start.
func drawMarkers(img draw.Image, marks []marker, height int) {
	band := height / 32
	if band < 2 {
		band = 2
	}
	for _, m := range marks {
		c := color.RGBA{R: 255, G: uint8(200 * (1 - clamp01(m.confidence))), B: 0, A: 255}
		for x := m.from; x <= m.to; x++ {
			for y := 0; y < band; y++ {
				img.Set(x, y, c)
			}
		}
		for y := band; y < height; y += 2 {
			img.Set(m.from, y, c)
		}
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
