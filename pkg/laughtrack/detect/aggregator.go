// Package detect folds classification results into a sparse map of
// time-keyed detections for one target label.
package detect

import (
	"math"
	"strconv"
	"strings"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/audio"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/classify"
)

// DefaultLabel is the label the CLI looks for.
const DefaultLabel = "laughter"

// Event is one detection: a time key and its rounded confidence.
type Event struct {
	TimeKey    string
	Confidence float64
}

// ResultSet maps time keys to confidences. Keys are unique; iteration
// follows first insertion, which keeps tie-breaking stable within a run.
type ResultSet struct {
	keys   []string
	values map[string]float64
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{values: make(map[string]float64)}
}

// Put inserts or overwrites key.
func (rs *ResultSet) Put(key string, confidence float64) {
	if rs.values == nil {
		rs.values = make(map[string]float64)
	}
	if _, ok := rs.values[key]; !ok {
		rs.keys = append(rs.keys, key)
	}
	rs.values[key] = confidence
}

// Get returns the confidence stored under key.
func (rs *ResultSet) Get(key string) (float64, bool) {
	if rs == nil {
		return 0, false
	}
	v, ok := rs.values[key]
	return v, ok
}

// Len returns the number of keys.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.keys)
}

// Events lists the entries in insertion order.
func (rs *ResultSet) Events() []Event {
	if rs == nil {
		return nil
	}
	out := make([]Event, 0, len(rs.keys))
	for _, k := range rs.keys {
		out = append(out, Event{TimeKey: k, Confidence: rs.values[k]})
	}
	return out
}

// Clone returns an independent copy.
func (rs *ResultSet) Clone() *ResultSet {
	out := NewResultSet()
	if rs == nil {
		return out
	}
	for _, k := range rs.keys {
		out.Put(k, rs.values[k])
	}
	return out
}

// Aggregator keeps, per time key, the last above-threshold confidence seen
// for its label. Results must be observed in window order.
type Aggregator struct {
	label     string
	threshold float64
	results   *ResultSet
	observed  int
	matched   int
}

// NewAggregator watches for label at or above threshold.
func NewAggregator(label string, threshold float64) *Aggregator {
	return &Aggregator{
		label:     label,
		threshold: threshold,
		results:   NewResultSet(),
	}
}

// Observe folds one result in. Only the first score matching the label and
// threshold counts; a repeated time key overwrites the earlier entry.
func (a *Aggregator) Observe(r classify.Result) {
	a.observed++
	for _, s := range r.Scores {
		if s.Label != a.label || s.Confidence < a.threshold {
			continue
		}
		a.results.Put(TimeKey(r.Start), Round2(s.Confidence))
		a.matched++
		return
	}
}

// Results returns a copy of the accumulated set.
func (a *Aggregator) Results() *ResultSet { return a.results.Clone() }

// Observed is the number of results seen.
func (a *Aggregator) Observed() int { return a.observed }

// Matched is the number of results that produced an upsert.
func (a *Aggregator) Matched() int { return a.matched }

// Label is the target label.
func (a *Aggregator) Label() string { return a.label }

// Threshold is the inclusive confidence floor.
func (a *Aggregator) Threshold() float64 { return a.threshold }

// Round2 rounds to two decimals, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// TimeKey renders t as decimal seconds in the shortest form that parses
// back to the same float64, always with a fractional part: "0.0", "1.5",
// "2.0", "0.375".
func TimeKey(t audio.Time) string {
	s := strconv.FormatFloat(t.Seconds(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
