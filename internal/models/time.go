package models

import (
	"fmt"
	"math"
	"time"
)

// DefaultTimescale is the timescale used when converting from time.Duration.
const DefaultTimescale int32 = 600

// Time is a rational media timestamp: Value/Scale seconds.
// It is derived from sample clocks, never from the wall clock.
type Time struct {
	Value int64 `json:"value"`
	Scale int32 `json:"scale"`
}

// Zero is a valid zero timestamp.
var Zero = Time{Value: 0, Scale: DefaultTimescale}

// NewTime creates a timestamp of value/scale seconds.
func NewTime(value int64, scale int32) Time {
	return Time{Value: value, Scale: scale}
}

// TimeFromDuration converts a duration using the given timescale, rounding to nearest.
func TimeFromDuration(d time.Duration, scale int32) Time {
	if scale <= 0 {
		scale = DefaultTimescale
	}
	v := math.Round(d.Seconds() * float64(scale))
	return Time{Value: int64(v), Scale: scale}
}

// IsValid reports whether the timestamp has a usable timescale.
func (t Time) IsValid() bool {
	return t.Scale > 0
}

// Seconds returns the timestamp as floating point seconds.
func (t Time) Seconds() float64 {
	if !t.IsValid() {
		return 0
	}
	return float64(t.Value) / float64(t.Scale)
}

// Duration converts the timestamp to a time.Duration.
func (t Time) Duration() time.Duration {
	if !t.IsValid() {
		return 0
	}
	// split to avoid overflowing int64 for large values
	whole := t.Value / int64(t.Scale)
	rem := t.Value % int64(t.Scale)
	return time.Duration(whole)*time.Second +
		time.Duration(rem)*time.Second/time.Duration(t.Scale)
}

// ConvertScale re-expresses t in another timescale, rounding to nearest.
func (t Time) ConvertScale(scale int32) Time {
	if t.Scale == scale || !t.IsValid() || scale <= 0 {
		return t
	}
	v := math.Round(float64(t.Value) * float64(scale) / float64(t.Scale))
	return Time{Value: int64(v), Scale: scale}
}

// Sub returns t - o expressed in the finer of the two timescales.
func (t Time) Sub(o Time) Time {
	a, b := commonScale(t, o)
	return Time{Value: a.Value - b.Value, Scale: a.Scale}
}

// Add returns t + o expressed in the finer of the two timescales.
func (t Time) Add(o Time) Time {
	a, b := commonScale(t, o)
	return Time{Value: a.Value + b.Value, Scale: a.Scale}
}

// Compare returns -1, 0 or +1.
func (t Time) Compare(o Time) int {
	a, b := commonScale(t, o)
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	default:
		return 0
	}
}

func (t Time) String() string {
	return fmt.Sprintf("%d/%d (%.3fs)", t.Value, t.Scale, t.Seconds())
}

func commonScale(a, b Time) (Time, Time) {
	if !a.IsValid() {
		a = Time{Scale: b.Scale}
	}
	if !b.IsValid() {
		b = Time{Scale: a.Scale}
	}
	if a.Scale == b.Scale {
		return a, b
	}
	if a.Scale > b.Scale {
		return a, b.ConvertScale(a.Scale)
	}
	return a.ConvertScale(b.Scale), b
}
