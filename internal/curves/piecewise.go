package curves

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Piecewise selects one sub-curve per input element using half-open
// intervals [-inf, b0), [b0, b1), ..., [b(k-1), +inf).
type Piecewise struct {
	basis
	breakpoints []float64
	pieces      []Curve
	mul         float64
}

// NewPiecewise builds a piecewise term. Breakpoints must be strictly
// increasing and there must be exactly one more piece than breakpoints.
func NewPiecewise(breakpoints []float64, pieces []Curve, opts ...Option) (Piecewise, error) {
	if len(pieces) != len(breakpoints)+1 {
		return Piecewise{}, fmt.Errorf("%w: %d breakpoints need %d pieces, got %d",
			ErrMalformed, len(breakpoints), len(breakpoints)+1, len(pieces))
	}
	for i, b := range breakpoints {
		if math.IsNaN(b) {
			return Piecewise{}, fmt.Errorf("%w: breakpoint %d is NaN", ErrMalformed, i)
		}
		if i > 0 && b <= breakpoints[i-1] {
			return Piecewise{}, fmt.Errorf("%w: breakpoints must be strictly increasing, got %v after %v",
				ErrMalformed, b, breakpoints[i-1])
		}
	}
	bs, err := newBasis(opts)
	if err != nil {
		return Piecewise{}, err
	}
	return Piecewise{
		basis:       bs,
		breakpoints: append([]float64(nil), breakpoints...),
		pieces:      append([]Curve(nil), pieces...),
		mul:         1,
	}, nil
}

// Breakpoints returns a copy of the segment boundaries.
func (p Piecewise) Breakpoints() []float64 {
	return append([]float64(nil), p.breakpoints...)
}

// Pieces returns the sub-curves with the accumulated factor applied.
func (p Piecewise) Pieces() []Curve {
	out := make([]Curve, len(p.pieces))
	for i, c := range p.pieces {
		out[i] = c.Scale(p.mul)
	}
	return out
}

// segment returns the index of the piece responsible for s.
func (p Piecewise) segment(s float64) int {
	return sort.Search(len(p.breakpoints), func(i int) bool { return p.breakpoints[i] > s })
}

// Evaluate implements Term. Each element is evaluated by its own piece only.
func (p Piecewise) Evaluate(x []float64) []float64 {
	s := p.normalize(x)
	groups := make([][]int, len(p.pieces))
	for i, v := range s {
		seg := p.segment(v)
		groups[seg] = append(groups[seg], i)
	}

	out := make([]float64, len(x))
	for seg, idx := range groups {
		if len(idx) == 0 {
			continue
		}
		in := make([]float64, len(idx))
		for j, i := range idx {
			in[j] = s[i]
		}
		vals := p.pieces[seg].Evaluate(in)
		for j, i := range idx {
			out[i] = p.mul * vals[j]
		}
	}
	return out
}

// Kind implements Term. The tag records each breakpoint with the kind of the
// piece starting there.
func (p Piecewise) Kind() string {
	var b strings.Builder
	b.WriteString("PW:")
	b.WriteString(p.pieces[0].Kind())
	for i, bp := range p.breakpoints {
		fmt.Fprintf(&b, "-[%s]%s", formatNumber(bp), p.pieces[i+1].Kind())
	}
	return b.String()
}

func (p Piecewise) String() string {
	pieces := p.Pieces()
	parts := make([]string, len(pieces))
	for i, c := range pieces {
		parts[i] = c.String()
	}
	return strings.Join(parts, " | ")
}

func (p Piecewise) factor() float64 { return p.mul }

func (p Piecewise) withFactor(f float64) Term {
	p.mul = f
	return p
}
