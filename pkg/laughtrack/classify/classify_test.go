package classify

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
)

const testRate = 16000

func window(index int, samples []float64) audio.Window {
	return audio.Window{
		Index:      index,
		Start:      audio.Time{Value: int64(index) * 600, Scale: 600},
		Duration:   audio.Time{Value: 600, Scale: 600},
		SampleRate: testRate,
		Samples:    samples,
	}
}

// tone returns one second of a sine at hz whose amplitude pulses at pulseHz
// (no pulsing when pulseHz is 0).
func tone(hz, pulseHz float64) []float64 {
	out := make([]float64, testRate)
	for i := range out {
		t := float64(i) / testRate
		amp := 0.5
		if pulseHz > 0 {
			amp = 0.5 * (0.5 + 0.5*math.Sin(2*math.Pi*pulseHz*t))
		}
		out[i] = amp * math.Sin(2*math.Pi*hz*t)
	}
	return out
}

func scoreOf(r Result, label string) float64 {
	for _, s := range r.Scores {
		if s.Label == label {
			return s.Confidence
		}
	}
	return -1
}

func TestSpectralSilence(t *testing.T) {
	r, err := NewSpectral().Classify(context.Background(), window(0, make([]float64, testRate)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if r.Scores[0].Label != LabelSilence {
		t.Errorf("Expected silence first, got %+v", r.Scores)
	}
	if got := scoreOf(r, LabelLaughter); got > 0.01 {
		t.Errorf("Expected no laughter in silence, got %f", got)
	}
}

func TestSpectralPulsedToneReadsAsLaughter(t *testing.T) {
	r, err := NewSpectral().Classify(context.Background(), window(3, tone(1500, 5)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if r.Scores[0].Label != LabelLaughter {
		t.Errorf("Expected laughter first, got %+v", r.Scores)
	}
	if got := scoreOf(r, LabelLaughter); got < 0.8 {
		t.Errorf("Expected laughter confidence >= 0.8, got %f", got)
	}
	if r.Start != (audio.Time{Value: 1800, Scale: 600}) {
		t.Errorf("Result start should echo the window start, got %s", r.Start)
	}
}

func TestSpectralSteadyToneIsNotLaughter(t *testing.T) {
	r, err := NewSpectral().Classify(context.Background(), window(0, tone(1500, 0)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got := scoreOf(r, LabelLaughter); got > 0.5 {
		t.Errorf("Expected steady tone laughter < 0.5, got %f", got)
	}
}

func TestSpectralScoresInRange(t *testing.T) {
	inputs := map[string][]float64{
		"silence": make([]float64, testRate),
		"pulsed":  tone(1500, 5),
		"steady":  tone(440, 0),
		"short":   tone(1000, 0)[:100],
	}
	m := NewSpectral()
	for name, samples := range inputs {
		t.Run(name, func(t *testing.T) {
			r, err := m.Classify(context.Background(), window(0, samples))
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if len(r.Scores) != 3 {
				t.Fatalf("Expected 3 scores, got %d", len(r.Scores))
			}
			if err := CheckResult(r); err != nil {
				t.Error(err)
			}
			for i := 1; i < len(r.Scores); i++ {
				if r.Scores[i].Confidence > r.Scores[i-1].Confidence {
					t.Errorf("Scores not sorted by confidence: %+v", r.Scores)
				}
			}
		})
	}
}

func TestCheckWindow(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		wantErr bool
	}{
		{"ok", []float64{0, 0.5, -0.5}, false},
		{"empty", nil, true},
		{"NaN", []float64{0, math.NaN()}, true},
		{"Inf", []float64{math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWindow(window(0, tt.samples))
			if tt.wantErr && !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("Expected ErrInvalidWindow, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSpectralRejectsCorruptWindow(t *testing.T) {
	_, err := NewSpectral().Classify(context.Background(), window(0, []float64{math.NaN()}))
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}
}

func TestCheckResult(t *testing.T) {
	bad := []float64{-0.1, 1.01, math.NaN()}
	for _, c := range bad {
		if err := CheckResult(Result{Scores: []Score{{Label: "laughter", Confidence: c}}}); err == nil {
			t.Errorf("Expected confidence %v to be rejected", c)
		}
	}
	if err := CheckResult(Result{Scores: []Score{{Label: "laughter", Confidence: 1}}}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("model exploded")
	w := window(4, []float64{0})

	err := Wrap(w, cause)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if ce.Index != 4 {
		t.Errorf("Expected index 4, got %d", ce.Index)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrapped error should unwrap to its cause")
	}
	if again := Wrap(w, err); again != err {
		t.Error("Wrap should not double-wrap")
	}
	if Wrap(w, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestHTTPClassifier(t *testing.T) {
	var got classifyReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(classifyResp{Classifications: []Score{
			{Label: "speech", Confidence: 0.2},
			{Label: "laughter", Confidence: 0.7},
		}})
	}))
	defer srv.Close()

	c, err := NewHTTP(srv.URL+"/", 0)
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}
	r, err := c.Classify(context.Background(), window(2, []float64{0.1, 0.2}))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.StartSeconds != 2 || got.SampleRate != testRate || len(got.Samples) != 2 {
		t.Errorf("Unexpected request body: %+v", got)
	}
	if len(r.Scores) != 2 || r.Scores[1].Label != "laughter" || r.Scores[1].Confidence != 0.7 {
		t.Errorf("Unexpected scores: %+v", r.Scores)
	}
}

func TestHTTPClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewHTTP(srv.URL, 0)
	if _, err := c.Classify(context.Background(), window(0, []float64{0})); err == nil {
		t.Error("Expected error for 503 response")
	}
}

func TestNewHTTPRequiresURL(t *testing.T) {
	if _, err := NewHTTP("  ", 0); err == nil {
		t.Error("Expected error for empty URL")
	}
}

func TestScripted(t *testing.T) {
	s := NewScripted(ScriptEntry{Index: 1, Scores: []Score{{Label: "laughter", Confidence: 0.9}}})

	r0, _ := s.Classify(context.Background(), window(0, []float64{0}))
	if len(r0.Scores) != 0 {
		t.Errorf("Expected no scores for unscripted window, got %+v", r0.Scores)
	}
	r1, _ := s.Classify(context.Background(), window(1, []float64{0}))
	if len(r1.Scores) != 1 || r1.Scores[0].Confidence != 0.9 {
		t.Errorf("Unexpected scores: %+v", r1.Scores)
	}
	if s.Calls(1) != 1 || s.Calls(0) != 1 || s.Calls(2) != 0 {
		t.Errorf("Unexpected call counts: %d %d %d", s.Calls(0), s.Calls(1), s.Calls(2))
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	body := `[{"index":0,"scores":[{"label":"laughter","confidence":0.62}]}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	r, _ := s.Classify(context.Background(), window(0, []float64{0}))
	if len(r.Scores) != 1 || r.Scores[0].Confidence != 0.62 {
		t.Errorf("Unexpected scores: %+v", r.Scores)
	}

	if _, err := LoadScript(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing script")
	}
}

func TestNewBackends(t *testing.T) {
	if c, err := New("", Options{}); err != nil {
		t.Errorf("default backend failed: %v", err)
	} else if _, ok := c.(*Spectral); !ok {
		t.Errorf("Expected *Spectral default, got %T", c)
	}
	if _, err := New(BackendHTTP, Options{}); err == nil {
		t.Error("Expected http backend without URL to fail")
	}
	if _, err := New(BackendReplay, Options{}); err == nil {
		t.Error("Expected replay backend without script to fail")
	}
	if _, err := New("yamnet", Options{}); err == nil {
		t.Error("Expected unknown backend to fail")
	}
}

func TestHamming(t *testing.T) {
	for _, size := range []int{128, 256, 1024} {
		w := Hamming(size)
		if len(w) != size {
			t.Errorf("Expected window size %d, got %d", size, len(w))
		}
		for i, v := range w {
			if v < 0 || v > 1 {
				t.Errorf("Window value %d out of range [0,1]: %f", i, v)
			}
		}
		if w[0] >= w[size/2] {
			t.Error("Hamming window should be lower at edges")
		}
	}
}

func TestMagnitudeSpectrum(t *testing.T) {
	mag := MagnitudeSpectrum([]complex128{complex(1, 0), complex(3, 4), 0, 0})
	if len(mag) != 2 {
		t.Fatalf("Expected 2 bins, got %d", len(mag))
	}
	if mag[0] != 1 || mag[1] != 5 {
		t.Errorf("Unexpected magnitudes: %v", mag)
	}
}
