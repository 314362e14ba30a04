package curves

import (
	"fmt"
	"strings"
)

// Polynomial is a power series with coefficients ordered from degree 0 up.
type Polynomial struct {
	basis
	coeffs []float64
}

// NewPolynomial builds a polynomial term. At least one coefficient is
// required.
func NewPolynomial(coeffs []float64, opts ...Option) (Polynomial, error) {
	if len(coeffs) == 0 {
		return Polynomial{}, fmt.Errorf("%w: polynomial needs at least one coefficient", ErrMalformed)
	}
	b, err := newBasis(opts)
	if err != nil {
		return Polynomial{}, err
	}
	return Polynomial{basis: b, coeffs: append([]float64(nil), coeffs...)}, nil
}

// Coefficients returns a copy of the coefficients, lowest degree first.
func (p Polynomial) Coefficients() []float64 {
	return append([]float64(nil), p.coeffs...)
}

// Degree returns the polynomial degree implied by the coefficient count.
func (p Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// Evaluate implements Term.
func (p Polynomial) Evaluate(x []float64) []float64 {
	s := p.normalize(x)
	for i, v := range s {
		s[i] = horner(p.coeffs, v)
	}
	return s
}

// Kind implements Term.
func (p Polynomial) Kind() string {
	return fmt.Sprintf("Poly(%d)", p.Degree())
}

func (p Polynomial) String() string {
	parts := make([]string, len(p.coeffs))
	for d, c := range p.coeffs {
		parts[d] = "(" + formatNumber(c) + ")" + p.power(float64(d))
	}
	return strings.Join(parts, " + ")
}

func (p Polynomial) coefficients() []float64 { return p.coeffs }

func (p Polynomial) withCoefficients(c []float64) Term {
	return Polynomial{basis: p.basis, coeffs: c}
}

// InverseXPolynomial is a power series in 1/x without a constant term.
// Coefficients are ordered from the highest inverse power down to 1/x.
type InverseXPolynomial struct {
	basis
	coeffs []float64
}

// NewInverseXPolynomial builds an inverse power series term.
func NewInverseXPolynomial(coeffs []float64, opts ...Option) (InverseXPolynomial, error) {
	if len(coeffs) == 0 {
		return InverseXPolynomial{}, fmt.Errorf("%w: inverse polynomial needs at least one coefficient", ErrMalformed)
	}
	b, err := newBasis(opts)
	if err != nil {
		return InverseXPolynomial{}, err
	}
	return InverseXPolynomial{basis: b, coeffs: append([]float64(nil), coeffs...)}, nil
}

// Coefficients returns a copy of the coefficients, highest inverse power first.
func (p InverseXPolynomial) Coefficients() []float64 {
	return append([]float64(nil), p.coeffs...)
}

// Evaluate implements Term. At the pole the result is not finite.
func (p InverseXPolynomial) Evaluate(x []float64) []float64 {
	s := p.normalize(x)
	for i, v := range s {
		u := 1 / v
		acc := p.coeffs[0]
		for _, c := range p.coeffs[1:] {
			acc = acc*u + c
		}
		s[i] = acc * u
	}
	return s
}

// Kind implements Term.
func (p InverseXPolynomial) Kind() string {
	return fmt.Sprintf("Poly(-%d)", len(p.coeffs))
}

func (p InverseXPolynomial) String() string {
	k := len(p.coeffs)
	parts := make([]string, k)
	for i, c := range p.coeffs {
		parts[i] = "(" + formatNumber(c) + ")" + p.power(-float64(k-i))
	}
	return strings.Join(parts, " + ")
}

func (p InverseXPolynomial) coefficients() []float64 { return p.coeffs }

func (p InverseXPolynomial) withCoefficients(c []float64) Term {
	return InverseXPolynomial{basis: p.basis, coeffs: c}
}

// horner evaluates sum(coeffs[i] * s^i) for coefficients ordered low to high.
func horner(lowToHigh []float64, s float64) float64 {
	acc := 0.0
	for i := len(lowToHigh) - 1; i >= 0; i-- {
		acc = acc*s + lowToHigh[i]
	}
	return acc
}
