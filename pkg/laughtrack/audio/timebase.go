package audio

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Time is a rational timestamp of Value/Scale seconds. Scale is the
// preferred timescale handed in on the command line.
type Time struct {
	Value int64
	Scale int32
}

// NewTime quantizes an exact number of seconds to the given timescale,
// rounding half away from zero.
func NewTime(seconds *big.Rat, scale int32) Time {
	ticks := new(big.Rat).Mul(seconds, big.NewRat(int64(scale), 1))
	v, ok := roundRat(ticks)
	if !ok {
		v = math.MaxInt64
		if ticks.Sign() < 0 {
			v = math.MinInt64
		}
	}
	return Time{Value: v, Scale: scale}
}

// Seconds returns the timestamp as floating-point seconds.
func (t Time) Seconds() float64 {
	if t.Scale == 0 {
		return 0
	}
	return float64(t.Value) / float64(t.Scale)
}

// Rat returns the exact rational value of t.
func (t Time) Rat() *big.Rat {
	if t.Scale == 0 {
		return new(big.Rat)
	}
	return big.NewRat(t.Value, int64(t.Scale))
}

func (t Time) String() string {
	return fmt.Sprintf("%d/%d", t.Value, t.Scale)
}

// roundRat rounds r to the nearest integer, halves away from zero. ok is
// false when the result does not fit in an int64.
func roundRat(r *big.Rat) (n int64, ok bool) {
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()

	// (2*|num| + den) / (2*den)
	num.Lsh(num, 1).Add(num, den)
	q := num.Quo(num, new(big.Int).Lsh(den, 1))
	if r.Sign() < 0 {
		q.Neg(q)
	}
	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}

// ratFromFloat converts x through its shortest decimal form, so 0.1 becomes
// exactly 1/10 instead of the nearest binary fraction.
func ratFromFloat(x float64) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(x, 'g', -1, 64))
	if !ok {
		return nil, fmt.Errorf("%w: %v is not a finite number", ErrConfig, x)
	}
	return r, nil
}
