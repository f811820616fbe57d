package laughtrack

import (
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
)

// Params are the per-run analysis arguments.
type Params struct {
	WindowSeconds float64 // window duration in seconds
	Timescale     int32   // ticks per second for timestamps
	Threshold     float64 // inclusive confidence floor in [0, 1]
	Overlap       float64 // fraction of overlap between windows in [0, 1)
}

// Validate checks every field; errors wrap audio.ErrConfig.
func (p Params) Validate() error {
	if math.IsNaN(p.Threshold) || p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be in [0, 1], got %v", audio.ErrConfig, p.Threshold)
	}
	return p.windowConfig(audio.PadPartial).Validate()
}

func (p Params) windowConfig(partial audio.PartialPolicy) audio.WindowConfig {
	return audio.WindowConfig{
		Duration:  p.WindowSeconds,
		Timescale: p.Timescale,
		Overlap:   p.Overlap,
		Partial:   partial,
	}
}

// Report is the outcome of one analysis.
type Report struct {
	RunID     string // empty unless the run was persisted
	AudioPath string
	Params    Params
	Label     string
	Engine    string
	Info      audio.Info
	Windows   int
	Events    []detect.Event // ascending time
	JSON      string         // canonical rendering, no trailing newline
	Elapsed   time.Duration
}

// Run is a stored Report.
type Run struct {
	ID         string
	AudioPath  string
	Params     Params
	Label      string
	Engine     string
	Windows    int
	Elapsed    time.Duration
	JSON       string
	Events     []detect.Event
	EventCount int
	CreatedAt  time.Time
}

func (r *Report) run() *Run {
	return &Run{
		ID:         r.RunID,
		AudioPath:  r.AudioPath,
		Params:     r.Params,
		Label:      r.Label,
		Engine:     r.Engine,
		Windows:    r.Windows,
		Elapsed:    r.Elapsed,
		JSON:       r.JSON,
		Events:     r.Events,
		EventCount: len(r.Events),
	}
}
