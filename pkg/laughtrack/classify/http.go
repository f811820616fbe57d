package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
)

// --- Remote model (/classify) ---

type classifyReq struct {
	StartSeconds float64   `json:"start_seconds"`
	Duration     float64   `json:"duration_seconds"`
	SampleRate   int       `json:"sample_rate"`
	Samples      []float64 `json:"samples"`
}

type classifyResp struct {
	Classifications []Score `json:"classifications"`
}

// HTTP forwards windows to a model server that answers POST {BaseURL}/classify.
type HTTP struct {
	BaseURL string
	c       *http.Client
}

// NewHTTP returns a client for the model server at baseURL.
func NewHTTP(baseURL string, timeout time.Duration) (*HTTP, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("model server URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		c:       &http.Client{Timeout: timeout},
	}, nil
}

func (h *HTTP) Classify(ctx context.Context, w audio.Window) (Result, error) {
	if err := CheckWindow(w); err != nil {
		return Result{}, err
	}

	b, err := json.Marshal(classifyReq{
		StartSeconds: w.Start.Seconds(),
		Duration:     w.Duration.Seconds(),
		SampleRate:   w.SampleRate,
		Samples:      w.Samples,
	})
	if err != nil {
		return Result{}, fmt.Errorf("classify encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/classify", bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, fmt.Errorf("classify %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out classifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("classify decode: %w", err)
	}
	return Result{Start: w.Start, Scores: out.Classifications}, nil
}
