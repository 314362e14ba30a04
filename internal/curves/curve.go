// Package curves implements composable scalar functions of one variable:
// sums and scalar multiples of named basis terms.
package curves

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Operand is the right-hand side of a curve operation: either a Scalar or
// another Curve.
type Operand interface {
	isOperand()
}

// Scalar is a plain number used as an operand.
type Scalar float64

func (Scalar) isOperand() {}

// Curve is an ordered list of terms plus an additive shift. The zero value
// is the additive identity and evaluates to 0 everywhere.
type Curve struct {
	terms []Term
	shift float64
}

func (Curve) isOperand() {}

// New returns a curve made of the given terms.
func New(terms ...Term) Curve {
	return Curve{terms: append([]Term(nil), terms...)}
}

// Constant returns the curve that evaluates to v everywhere.
func Constant(v float64) Curve {
	return Curve{shift: v}
}

// Terms returns the curve's terms.
func (c Curve) Terms() []Term {
	return append([]Term(nil), c.terms...)
}

// Shift returns the additive constant.
func (c Curve) Shift() float64 {
	return c.shift
}

// Evaluate applies the curve pointwise and returns a slice of len(x).
func (c Curve) Evaluate(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = c.shift
	}
	for _, t := range c.terms {
		floats.Add(out, t.Evaluate(x))
	}
	return out
}

// Plus adds a Scalar or a Curve. Adding Scalar(0) returns c unchanged.
func (c Curve) Plus(o Operand) Curve {
	switch v := o.(type) {
	case Scalar:
		if v == 0 {
			return c
		}
		return Curve{terms: c.terms, shift: c.shift + float64(v)}
	case Curve:
		return c.Add(v)
	default:
		panic(fmt.Sprintf("curves: unsupported operand %T", o))
	}
}

// Add concatenates the terms of both curves and sums their shifts.
func (c Curve) Add(o Curve) Curve {
	terms := make([]Term, 0, len(c.terms)+len(o.terms))
	terms = append(terms, c.terms...)
	terms = append(terms, o.terms...)
	return Curve{terms: terms, shift: c.shift + o.shift}
}

// Minus subtracts a Scalar or a Curve.
func (c Curve) Minus(o Operand) Curve {
	switch v := o.(type) {
	case Scalar:
		return c.Plus(-v)
	case Curve:
		return c.Add(v.Negate())
	default:
		panic(fmt.Sprintf("curves: unsupported operand %T", o))
	}
}

// Scale multiplies every term and the shift by k. Scaling by 0 returns the
// additive identity and scaling by 1 returns c unchanged.
func (c Curve) Scale(k float64) Curve {
	switch k {
	case 0:
		return Curve{}
	case 1:
		return c
	}
	terms := make([]Term, len(c.terms))
	for i, t := range c.terms {
		terms[i] = scaleTerm(t, k)
	}
	return Curve{terms: terms, shift: k * c.shift}
}

// Negate is Scale(-1).
func (c Curve) Negate() Curve {
	return c.Scale(-1)
}

// Over divides by a Scalar. Division by zero or by a Curve fails.
func (c Curve) Over(o Operand) (Curve, error) {
	switch v := o.(type) {
	case Scalar:
		if v == 0 {
			return Curve{}, fmt.Errorf("%w: division by zero", ErrUndefined)
		}
		return c.Scale(1 / float64(v)), nil
	case Curve:
		return Curve{}, fmt.Errorf("%w: division by a curve", ErrUndefined)
	default:
		return Curve{}, fmt.Errorf("%w: unsupported operand %T", ErrUndefined, o)
	}
}

// Kind joins the sorted kinds of the terms with "+", so construction order
// does not matter.
func (c Curve) Kind() string {
	kinds := make([]string, len(c.terms))
	for i, t := range c.terms {
		kinds[i] = t.Kind()
	}
	sort.Strings(kinds)
	return strings.Join(kinds, "+")
}

// String renders a nonzero shift first, then each term. The zero curve
// renders as the empty string.
func (c Curve) String() string {
	parts := make([]string, 0, len(c.terms)+1)
	if c.shift != 0 {
		parts = append(parts, "("+formatNumber(c.shift)+")")
	}
	for _, t := range c.terms {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " + ")
}

// Sum adds all curves together.
func Sum(curves ...Curve) Curve {
	var out Curve
	for _, c := range curves {
		out = out.Add(c)
	}
	return out
}

// Combine returns the linear combination sum(weights[i] * curves[i]).
func Combine(weights []float64, curves []Curve) (Curve, error) {
	if len(weights) != len(curves) {
		return Curve{}, fmt.Errorf("%w: %d weights for %d curves", ErrMalformed, len(weights), len(curves))
	}
	var out Curve
	for i, c := range curves {
		out = out.Add(c.Scale(weights[i]))
	}
	return out, nil
}

// DefaultSupport is the integer grid [-1000, 1000] used by Braket.
func DefaultSupport() []float64 {
	return floats.Span(make([]float64, 2001), -1000, 1000)
}

// Braket is the inner product of a and b sampled on support.
func Braket(a, b Curve, support []float64) float64 {
	return floats.Dot(a.Evaluate(support), b.Evaluate(support))
}
