package classify

import (
	"context"
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
)

// Labels emitted by the spectral model.
const (
	LabelLaughter = "laughter"
	LabelSpeech   = "speech"
	LabelSilence  = "silence"
)

// Spectral is a small deterministic acoustic model built on STFT features.
// Laughter shows up as loud, bright audio whose energy pulses at a
// syllable rate of roughly 3-8 Hz ("ha-ha-ha"); that pulse is measured by
// a second FFT over the frame-energy envelope.
type Spectral struct {
	FrameSize int     // STFT frame length in samples
	HopSize   int     // STFT hop in samples
	SilenceDB float64 // RMS level (dBFS) below which a window reads as silence

	ModLowHz  float64 // envelope modulation band counted as bursts
	ModHighHz float64
}

// NewSpectral returns the model with its tuned defaults.
func NewSpectral() *Spectral {
	return &Spectral{
		FrameSize: 1024,
		HopSize:   256,
		SilenceDB: -45,
		ModLowHz:  3,
		ModHighHz: 8,
	}
}

type spectralFeatures struct {
	rmsDB      float64
	zcr        float64
	centroidHz float64
	modulation float64 // share of envelope power inside the burst band
	depth      float64 // coefficient of variation of the frame energies
}

// Classify scores w for laughter, speech and silence, highest first.
func (s *Spectral) Classify(_ context.Context, w audio.Window) (Result, error) {
	if err := CheckWindow(w); err != nil {
		return Result{}, err
	}
	f := s.features(w.Samples, w.SampleRate)

	silence := logistic((s.SilenceDB - f.rmsDB) / 3)
	active := 1 - silence

	burst := logistic((f.modulation-0.3)*12) * logistic((f.depth-0.15)*20)
	brightness := 0.0
	if f.centroidHz > 0 {
		octaves := math.Log2(f.centroidHz/1800) / 1.2
		brightness = math.Exp(-0.5 * octaves * octaves)
	}
	noisiness := logistic((f.zcr - 0.15) * 20)

	scores := []Score{
		{Label: LabelLaughter, Confidence: clamp01(active * burst * (0.4 + 0.6*brightness))},
		{Label: LabelSpeech, Confidence: clamp01(active * (1 - 0.7*burst) * (1 - 0.5*noisiness))},
		{Label: LabelSilence, Confidence: clamp01(silence)},
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	return Result{Start: w.Start, Scores: scores}, nil
}

func (s *Spectral) features(samples []float64, sampleRate int) spectralFeatures {
	var f spectralFeatures

	sumSq := 0.0
	crossings := 0
	for i, x := range samples {
		sumSq += x * x
		if i > 0 && (x >= 0) != (samples[i-1] >= 0) {
			crossings++
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	f.rmsDB = 20 * math.Log10(rms+1e-12)
	f.zcr = float64(crossings) / float64(len(samples))

	frameSize := s.FrameSize
	if frameSize > len(samples) {
		frameSize = 1
		for frameSize*2 <= len(samples) {
			frameSize *= 2
		}
	}
	hop := s.HopSize
	if hop > frameSize/2 {
		hop = frameSize / 2
	}
	if frameSize < 2 || hop < 1 {
		return f
	}

	window := Hamming(frameSize)
	binHz := float64(sampleRate) / float64(frameSize)

	var envelope []float64
	weighted, totalEnergy := 0.0, 0.0
	frame := make([]float64, frameSize)
	for start := 0; start+frameSize <= len(samples); start += hop {
		energy := 0.0
		for i := 0; i < frameSize; i++ {
			x := samples[start+i]
			energy += x * x
			frame[i] = x * window[i]
		}
		envelope = append(envelope, energy)

		mag := MagnitudeSpectrum(fft.FFTReal(frame))
		num, den := 0.0, 0.0
		for k, m := range mag {
			num += float64(k) * binHz * m
			den += m
		}
		if den > 0 {
			weighted += energy * num / den
			totalEnergy += energy
		}
	}
	if totalEnergy > 0 {
		f.centroidHz = weighted / totalEnergy
	}

	f.modulation = bandShare(envelope, float64(sampleRate)/float64(hop), s.ModLowHz, s.ModHighHz)
	f.depth = variation(envelope)
	return f
}

// bandShare returns the fraction of the envelope's AC power between low and
// high Hz.
func bandShare(envelope []float64, rate, low, high float64) float64 {
	n := len(envelope)
	if n < 4 {
		return 0
	}
	mean := 0.0
	for _, e := range envelope {
		mean += e
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, e := range envelope {
		centered[i] = e - mean
	}

	spec := fft.FFTReal(centered)
	inBand, total := 0.0, 0.0
	for k := 1; k <= n/2; k++ {
		p := cmplx.Abs(spec[k])
		p *= p
		total += p
		if hz := float64(k) * rate / float64(n); hz >= low && hz <= high {
			inBand += p
		}
	}
	// a flat envelope leaves only rounding noise
	if dc := mean * float64(n); total <= 1e-9*dc*dc {
		return 0
	}
	return inBand / total
}

func variation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if mean <= 0 {
		return 0
	}
	v := 0.0
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return math.Sqrt(v/float64(len(xs))) / mean
}

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum keeps the positive-frequency half of a complex spectrum.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
