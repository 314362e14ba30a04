package fit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	// ErrInvalidSeries is returned for a series that cannot be fitted.
	ErrInvalidSeries = errors.New("invalid series")

	// ErrBreakpoint is returned when breakpoints do not split a series into
	// non-empty segments.
	ErrBreakpoint = errors.New("invalid breakpoint")

	// ErrParameters is returned for a parameter vector a family cannot use.
	ErrParameters = errors.New("invalid parameters")

	// ErrOptions is returned for out-of-range fit options.
	ErrOptions = errors.New("invalid options")
)

// Series is an ordered set of (x, y) observations with strictly increasing x.
type Series struct {
	x []float64
	y []float64
}

// NewSeries copies x and y into a Series.
func NewSeries(x, y []float64) (Series, error) {
	if len(x) == 0 {
		return Series{}, fmt.Errorf("%w: empty", ErrInvalidSeries)
	}
	if len(x) != len(y) {
		return Series{}, fmt.Errorf("%w: %d x values for %d y values", ErrInvalidSeries, len(x), len(y))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Series{}, fmt.Errorf("%w: x[%d] is %v", ErrInvalidSeries, i, v)
		}
		if i > 0 && v <= x[i-1] {
			return Series{}, fmt.Errorf("%w: x must be strictly increasing, x[%d]=%v after %v",
				ErrInvalidSeries, i, v, x[i-1])
		}
	}
	return Series{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
	}, nil
}

// Len is the number of observations.
func (s Series) Len() int { return len(s.x) }

// X returns a copy of the index.
func (s Series) X() []float64 { return append([]float64(nil), s.x...) }

// Y returns a copy of the values.
func (s Series) Y() []float64 { return append([]float64(nil), s.y...) }

// IndexOf returns the position of x in the index.
func (s Series) IndexOf(x float64) (int, bool) {
	i := sort.SearchFloat64s(s.x, x)
	if i < len(s.x) && s.x[i] == x {
		return i, true
	}
	return 0, false
}

// Slice returns observations [lo, hi). The result shares no memory with s.
func (s Series) Slice(lo, hi int) Series {
	return Series{
		x: append([]float64(nil), s.x[lo:hi]...),
		y: append([]float64(nil), s.y[lo:hi]...),
	}
}

// Sample draws n observations without replacement, keeping index order.
func (s Series) Sample(n int, rng *rand.Rand) Series {
	if n >= len(s.x) {
		return s.Slice(0, len(s.x))
	}
	idx := rng.Perm(len(s.x))[:n]
	sort.Ints(idx)
	out := Series{x: make([]float64, n), y: make([]float64, n)}
	for j, i := range idx {
		out.x[j] = s.x[i]
		out.y[j] = s.y[i]
	}
	return out
}
