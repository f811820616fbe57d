package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
)

// ScriptEntry is the scores to return for one window index.
type ScriptEntry struct {
	Index  int     `json:"index"`
	Scores []Score `json:"scores"`
}

// Scripted replays fixed scores per window index. Windows without an entry
// get no scores. It also records how often each index was classified.
type Scripted struct {
	mu     sync.Mutex
	script map[int][]Score
	calls  map[int]int
}

// NewScripted builds a replay model from entries.
func NewScripted(entries ...ScriptEntry) *Scripted {
	s := &Scripted{
		script: make(map[int][]Score, len(entries)),
		calls:  make(map[int]int),
	}
	for _, e := range entries {
		s.script[e.Index] = e.Scores
	}
	return s
}

// LoadScript reads a JSON array of ScriptEntry values, typically a dump of
// a real model's output.
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var entries []ScriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	return NewScripted(entries...), nil
}

func (s *Scripted) Classify(_ context.Context, w audio.Window) (Result, error) {
	if err := CheckWindow(w); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[w.Index]++

	scores := s.script[w.Index]
	out := make([]Score, len(scores))
	copy(out, scores)
	return Result{Start: w.Start, Scores: out}, nil
}

// Calls reports how many times window index was classified.
func (s *Scripted) Calls(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[index]
}
