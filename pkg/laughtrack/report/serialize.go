// Package report renders a detection result set as canonical JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
)

// ErrSerialization is returned when a result set cannot be rendered.
var ErrSerialization = errors.New("serialization failed")

const indent = "  "

// Sorted returns the events ordered by their key read as a number.
// Unparseable keys sort as 0; ties keep result set order.
func Sorted(rs *detect.ResultSet) []detect.Event {
	events := rs.Events()
	sort.SliceStable(events, func(i, j int) bool {
		return keyValue(events[i].TimeKey) < keyValue(events[j].TimeKey)
	})
	return events
}

// Serialize renders rs as a pretty-printed JSON object in ascending time
// order. The result has no trailing newline; an empty set renders as "{}".
func Serialize(rs *detect.ResultSet) (string, error) {
	events := Sorted(rs)
	if len(events) == 0 {
		return "{}", nil
	}

	var b strings.Builder
	b.WriteString("{\n")
	for i, ev := range events {
		if math.IsNaN(ev.Confidence) || math.IsInf(ev.Confidence, 0) {
			return "", fmt.Errorf("%w: confidence for %q is %v", ErrSerialization, ev.TimeKey, ev.Confidence)
		}
		key, err := json.Marshal(ev.TimeKey)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		b.WriteString(indent)
		b.Write(key)
		b.WriteString(": ")
		b.WriteString(strconv.FormatFloat(ev.Confidence, 'f', -1, 64))
		if i < len(events)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteByte('}')

	out := b.String()
	if !json.Valid([]byte(out)) {
		return "", fmt.Errorf("%w: produced invalid JSON", ErrSerialization)
	}
	return out, nil
}

func keyValue(key string) float64 {
	v, err := strconv.ParseFloat(key, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
