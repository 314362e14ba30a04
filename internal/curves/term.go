package curves

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrMalformed is returned when a term or curve cannot be built from the
	// given parameters.
	ErrMalformed = errors.New("curves: malformed curve")

	// ErrUndefined is returned for operations the algebra does not define,
	// such as dividing by a curve.
	ErrUndefined = errors.New("curves: undefined operation")
)

// Term is an atomic basis curve. Implementations are read-only after
// construction and belong to this package.
type Term interface {
	// Evaluate applies the term pointwise. x is not modified.
	Evaluate(x []float64) []float64
	// String renders the term with its parameters.
	String() string
	// Kind identifies the term family regardless of parameter values.
	Kind() string

	isTerm()
}

// linearlyScalable terms absorb a scale factor into their coefficients.
type linearlyScalable interface {
	coefficients() []float64
	withCoefficients(c []float64) Term
}

// factorScalable terms keep a separate multiplicative factor applied after
// the raw evaluation.
type factorScalable interface {
	factor() float64
	withFactor(f float64) Term
}

func scaleTerm(t Term, k float64) Term {
	if l, ok := t.(linearlyScalable); ok {
		c := l.coefficients()
		scaled := make([]float64, len(c))
		floats.ScaleTo(scaled, k, c)
		return l.withCoefficients(scaled)
	}
	if f, ok := t.(factorScalable); ok {
		return f.withFactor(k * f.factor())
	}
	panic(fmt.Sprintf("curves: %T declares no scaling capability", t))
}

// Option configures the pole and normalization of a term.
type Option func(*basis)

// WithPole shifts the term horizontally: x is replaced by x - pole.
func WithPole(pole float64) Option {
	return func(b *basis) { b.pole = pole }
}

// WithNorm scales the term horizontally: x is replaced by x / norm.
func WithNorm(norm float64) Option {
	return func(b *basis) { b.norm = norm }
}

// basis carries the horizontal shift and scale shared by every term.
type basis struct {
	pole float64
	norm float64
}

func newBasis(opts []Option) (basis, error) {
	b := basis{norm: 1}
	for _, opt := range opts {
		opt(&b)
	}
	if b.norm == 0 || math.IsNaN(b.norm) || math.IsInf(b.norm, 0) {
		return basis{}, fmt.Errorf("%w: normalization must be finite and non-zero, got %v", ErrMalformed, b.norm)
	}
	if math.IsNaN(b.pole) || math.IsInf(b.pole, 0) {
		return basis{}, fmt.Errorf("%w: pole must be finite, got %v", ErrMalformed, b.pole)
	}
	return b, nil
}

func (basis) isTerm() {}

// Pole returns the horizontal shift.
func (b basis) Pole() float64 { return b.pole }

// Norm returns the horizontal scale.
func (b basis) Norm() float64 { return b.norm }

// normalize returns (x - pole) / norm in a fresh slice.
func (b basis) normalize(x []float64) []float64 {
	s := make([]float64, len(x))
	for i, v := range x {
		s[i] = (v - b.pole) / b.norm
	}
	return s
}

var superscripts = map[int]string{
	0: "", 1: "", 2: "²", 3: "³", 4: "⁴", 5: "⁵", 6: "⁶", 7: "⁷", 8: "⁸", 9: "⁹",
}

// variable renders the normalized variable.
func (b basis) variable() string {
	v := "x"
	switch {
	case b.pole > 0:
		v = "(x - " + formatNumber(b.pole) + ")"
	case b.pole < 0:
		v = "(x + " + formatNumber(-b.pole) + ")"
	}
	if b.norm != 1 {
		v = "(" + v + "/" + formatNumber(b.norm) + ")"
	}
	return v
}

// power renders the normalized variable raised to exponent. Negative
// exponents render as a division.
func (b basis) power(exponent float64) string {
	if exponent == 0 {
		return ""
	}
	abs := math.Abs(exponent)
	exp, ok := "", false
	if abs == math.Trunc(abs) && abs <= 9 {
		exp, ok = superscripts[int(abs)]
	}
	if !ok {
		exp = "^(" + formatNumber(abs) + ")"
	}
	prefix := ""
	if exponent < 0 {
		prefix = "/"
	}
	return prefix + b.variable() + exp
}

// formatNumber renders v in its shortest round-trip form.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
