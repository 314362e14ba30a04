package curves

import (
	"math"
)

// PowerLaw is factor * coeff * x^exponent. Scaling does not touch the
// exponent, so it accumulates into factor instead.
type PowerLaw struct {
	basis
	coeff    float64
	exponent float64
	mul      float64
}

// NewPowerLaw builds a power law term with a unit factor.
func NewPowerLaw(coeff, exponent float64, opts ...Option) (PowerLaw, error) {
	b, err := newBasis(opts)
	if err != nil {
		return PowerLaw{}, err
	}
	return PowerLaw{basis: b, coeff: coeff, exponent: exponent, mul: 1}, nil
}

// Coefficient returns the fitted coefficient, without the accumulated factor.
func (p PowerLaw) Coefficient() float64 { return p.coeff }

// Exponent returns the power applied to the normalized variable.
func (p PowerLaw) Exponent() float64 { return p.exponent }

// Evaluate implements Term.
func (p PowerLaw) Evaluate(x []float64) []float64 {
	s := p.normalize(x)
	for i, v := range s {
		s[i] = p.mul * p.coeff * math.Pow(v, p.exponent)
	}
	return s
}

// Kind implements Term.
func (PowerLaw) Kind() string { return "PowerLaw" }

func (p PowerLaw) String() string {
	return "(" + formatNumber(p.mul*p.coeff) + ")" + p.power(p.exponent)
}

func (p PowerLaw) factor() float64 { return p.mul }

func (p PowerLaw) withFactor(f float64) Term {
	p.mul = f
	return p
}
