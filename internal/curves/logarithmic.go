package curves

import (
	"fmt"
	"math"
)

// Log is coeff * ln(x). It is not defined for normalized x <= 0.
type Log struct {
	basis
	coeff float64
}

// NewLog builds a logarithmic term.
func NewLog(coeff float64, opts ...Option) (Log, error) {
	b, err := newBasis(opts)
	if err != nil {
		return Log{}, err
	}
	return Log{basis: b, coeff: coeff}, nil
}

// Coefficient returns the multiplier of the logarithm.
func (l Log) Coefficient() float64 { return l.coeff }

// Evaluate implements Term.
func (l Log) Evaluate(x []float64) []float64 {
	s := l.normalize(x)
	for i, v := range s {
		s[i] = l.coeff * math.Log(v)
	}
	return s
}

// Kind implements Term.
func (Log) Kind() string { return "Log" }

func (l Log) String() string {
	return fmt.Sprintf("(%s)log%s", formatNumber(l.coeff), l.variable())
}

func (l Log) coefficients() []float64 { return []float64{l.coeff} }

func (l Log) withCoefficients(c []float64) Term {
	return Log{basis: l.basis, coeff: c[0]}
}

// Xlog is coeff * x * ln(x). It is not defined for normalized x <= 0.
type Xlog struct {
	basis
	coeff float64
}

// NewXlog builds an x·log(x) term.
func NewXlog(coeff float64, opts ...Option) (Xlog, error) {
	b, err := newBasis(opts)
	if err != nil {
		return Xlog{}, err
	}
	return Xlog{basis: b, coeff: coeff}, nil
}

// Coefficient returns the multiplier of x·log(x).
func (l Xlog) Coefficient() float64 { return l.coeff }

// Evaluate implements Term.
func (l Xlog) Evaluate(x []float64) []float64 {
	s := l.normalize(x)
	for i, v := range s {
		s[i] = l.coeff * v * math.Log(v)
	}
	return s
}

// Kind implements Term.
func (Xlog) Kind() string { return "Xlog" }

func (l Xlog) String() string {
	v := l.variable()
	return fmt.Sprintf("(%s)%slog%s", formatNumber(l.coeff), v, v)
}

func (l Xlog) coefficients() []float64 { return []float64{l.coeff} }

func (l Xlog) withCoefficients(c []float64) Term {
	return Xlog{basis: l.basis, coeff: c[0]}
}
