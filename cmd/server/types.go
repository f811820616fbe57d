package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack"
)

// AnalyzeRequest holds the form fields of POST /api/analyze.
type AnalyzeRequest struct {
	Window    string
	Timescale string
	Threshold string
	Overlap   string
}

// Params parses the request into analysis parameters. Missing fields take
// the defaults 1s / 600 / 0.5 / 0.
func (r AnalyzeRequest) Params() (laughtrack.Params, error) {
	p := laughtrack.Params{WindowSeconds: 1, Timescale: 600, Threshold: 0.5}

	var err error
	if r.Window != "" {
		if p.WindowSeconds, err = strconv.ParseFloat(r.Window, 64); err != nil {
			return p, fmt.Errorf("window must be a number: %q", r.Window)
		}
	}
	if r.Timescale != "" {
		ts, err := strconv.ParseInt(r.Timescale, 10, 32)
		if err != nil {
			return p, fmt.Errorf("timescale must be an integer: %q", r.Timescale)
		}
		p.Timescale = int32(ts)
	}
	if r.Threshold != "" {
		if p.Threshold, err = strconv.ParseFloat(r.Threshold, 64); err != nil {
			return p, fmt.Errorf("threshold must be a number: %q", r.Threshold)
		}
	}
	if r.Overlap != "" {
		if p.Overlap, err = strconv.ParseFloat(r.Overlap, 64); err != nil {
			return p, fmt.Errorf("overlap must be a number: %q", r.Overlap)
		}
	}
	return p, p.Validate()
}

// AnalyzeURLRequest is the JSON body of POST /api/analyze/youtube. Omitted
// parameters take the same defaults as an upload.
type AnalyzeURLRequest struct {
	URL       string   `json:"url"`
	Window    *float64 `json:"window,omitempty"`
	Timescale *int32   `json:"timescale,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Overlap   *float64 `json:"overlap,omitempty"`
}

func (r AnalyzeURLRequest) Params() (laughtrack.Params, error) {
	p := laughtrack.Params{WindowSeconds: 1, Timescale: 600, Threshold: 0.5}
	if r.Window != nil {
		p.WindowSeconds = *r.Window
	}
	if r.Timescale != nil {
		p.Timescale = *r.Timescale
	}
	if r.Threshold != nil {
		p.Threshold = *r.Threshold
	}
	if r.Overlap != nil {
		p.Overlap = *r.Overlap
	}
	return p, p.Validate()
}

// ParamsDTO echoes analysis parameters.
type ParamsDTO struct {
	WindowSeconds float64 `json:"window_seconds"`
	Timescale     int32   `json:"timescale"`
	Threshold     float64 `json:"threshold"`
	Overlap       float64 `json:"overlap"`
}

func paramsDTO(p laughtrack.Params) ParamsDTO {
	return ParamsDTO{
		WindowSeconds: p.WindowSeconds,
		Timescale:     p.Timescale,
		Threshold:     p.Threshold,
		Overlap:       p.Overlap,
	}
}

// EventDTO is one detection.
type EventDTO struct {
	Time       string  `json:"time"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeResponse is the response for POST /api/analyze. Results carries
// the canonical time-ordered object verbatim.
type AnalyzeResponse struct {
	RunID      string          `json:"run_id,omitempty"`
	Label      string          `json:"label"`
	Engine     string          `json:"engine"`
	Params     ParamsDTO       `json:"params"`
	Windows    int             `json:"windows"`
	DurationMs int64           `json:"audio_duration_ms"`
	ElapsedMs  int64           `json:"elapsed_ms"`
	Results    json.RawMessage `json:"results"`
	Events     []EventDTO      `json:"events"`
}

// RunDTO represents a stored run in API responses
type RunDTO struct {
	ID         string          `json:"id"`
	AudioPath  string          `json:"audio_path"`
	Label      string          `json:"label"`
	Engine     string          `json:"engine"`
	Params     ParamsDTO       `json:"params"`
	Windows    int             `json:"windows"`
	EventCount int             `json:"event_count"`
	ElapsedMs  int64           `json:"elapsed_ms"`
	CreatedAt  string          `json:"created_at"`
	Results    json.RawMessage `json:"results,omitempty"`
	Events     []EventDTO      `json:"events,omitempty"`
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// DeleteRunResponse is the response for DELETE /api/runs/{id}
type DeleteRunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and run history metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	RunCount     int    `json:"run_count"`
	Engine       string `json:"engine"`
	Label        string `json:"label"`
	Workers      int    `json:"workers"`
	SampleRate   int    `json:"sample_rate"`
	Uptime       string `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
