package fit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/copyleftdev/curvefit/internal/curves"
	"github.com/copyleftdev/curvefit/internal/measure"
)

// Family maps a parameter vector to a curve.
type Family interface {
	// Name is the lookup name of the family.
	Name() string

	// Curve builds the curve for params, failing with ErrParameters when
	// the family cannot use that many parameters.
	Curve(params []float64) (curves.Curve, error)

	// Format renders the fitted formula with one measure per parameter.
	Format(measures []measure.Measure) string
}

// Family names accepted by Lookup.
const (
	PolynomialName = "polynomial"
	InverseXName   = "inverse-x"
	LogName        = "log"
	XlogName       = "xlog"
	PowerLawName   = "power-law"
)

var families = map[string]Family{
	PolynomialName: Polynomial{},
	InverseXName:   InverseX{},
	LogName:        Log{},
	XlogName:       Xlog{},
	PowerLawName:   PowerLaw{},
}

// Lookup returns the family registered under name.
func Lookup(name string) (Family, error) {
	f, ok := families[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown family %q (known: %s)", name, strings.Join(Families(), ", "))
	}
	return f, nil
}

// Families lists the registered family names in sorted order.
func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Degree returns the initial parameter vector for a polynomial-like family
// of the given degree: degree+1 ones.
func Degree(degree int) []float64 {
	if degree < 0 {
		return nil
	}
	out := make([]float64, degree+1)
	for i := range out {
		out[i] = 1
	}
	return out
}

func checkCount(f Family, params []float64, min, max int) error {
	n := len(params)
	if n < min || (max > 0 && n > max) {
		if min == max {
			return fmt.Errorf("%w: %s takes %d parameters, got %d", ErrParameters, f.Name(), min, n)
		}
		return fmt.Errorf("%w: %s takes at least %d parameters, got %d", ErrParameters, f.Name(), min, n)
	}
	return nil
}

// Polynomial is c0 + c1·x + ... + cd·x^d.
type Polynomial struct{}

func (Polynomial) Name() string { return PolynomialName }

func (f Polynomial) Curve(params []float64) (curves.Curve, error) {
	if err := checkCount(f, params, 1, 0); err != nil {
		return curves.Curve{}, err
	}
	p, err := curves.NewPolynomial(params)
	if err != nil {
		return curves.Curve{}, err
	}
	return curves.New(p), nil
}

func (Polynomial) Format(measures []measure.Measure) string {
	parts := make([]string, len(measures))
	for d, m := range measures {
		parts[d] = "(" + m.ValuePMError() + ")" + monomial("x", d)
	}
	return strings.Join(parts, " + ")
}

// InverseX is c0 + a1/x + ... + an/x^n, with parameters [c0, a1, ..., an].
type InverseX struct{}

func (InverseX) Name() string { return InverseXName }

func (f InverseX) Curve(params []float64) (curves.Curve, error) {
	if err := checkCount(f, params, 2, 0); err != nil {
		return curves.Curve{}, err
	}
	inverse := make([]float64, len(params)-1)
	for i := range inverse {
		inverse[i] = params[len(params)-1-i]
	}
	p, err := curves.NewInverseXPolynomial(inverse)
	if err != nil {
		return curves.Curve{}, err
	}
	return curves.New(p).Plus(curves.Scalar(params[0])), nil
}

func (InverseX) Format(measures []measure.Measure) string {
	parts := make([]string, len(measures))
	for d, m := range measures {
		parts[d] = "(" + m.ValuePMError() + ")"
		switch {
		case d == 1:
			parts[d] += "/x"
		case d > 1:
			parts[d] += fmt.Sprintf("/x^%d", d)
		}
	}
	return strings.Join(parts, " + ")
}

// Log is a + b·ln(x).
type Log struct{}

func (Log) Name() string { return LogName }

func (f Log) Curve(params []float64) (curves.Curve, error) {
	if err := checkCount(f, params, 2, 2); err != nil {
		return curves.Curve{}, err
	}
	l, err := curves.NewLog(params[1])
	if err != nil {
		return curves.Curve{}, err
	}
	return curves.New(l).Plus(curves.Scalar(params[0])), nil
}

func (Log) Format(measures []measure.Measure) string {
	return pair(measures, "log(x)")
}

// Xlog is a + b·x·ln(x).
type Xlog struct{}

func (Xlog) Name() string { return XlogName }

func (f Xlog) Curve(params []float64) (curves.Curve, error) {
	if err := checkCount(f, params, 2, 2); err != nil {
		return curves.Curve{}, err
	}
	l, err := curves.NewXlog(params[1])
	if err != nil {
		return curves.Curve{}, err
	}
	return curves.New(l).Plus(curves.Scalar(params[0])), nil
}

func (Xlog) Format(measures []measure.Measure) string {
	return pair(measures, "xlog(x)")
}

// PowerLaw is a·x^b.
type PowerLaw struct{}

func (PowerLaw) Name() string { return PowerLawName }

func (f PowerLaw) Curve(params []float64) (curves.Curve, error) {
	if err := checkCount(f, params, 2, 2); err != nil {
		return curves.Curve{}, err
	}
	p, err := curves.NewPowerLaw(params[0], params[1])
	if err != nil {
		return curves.Curve{}, err
	}
	return curves.New(p), nil
}

func (PowerLaw) Format(measures []measure.Measure) string {
	if len(measures) != 2 {
		return fallbackFormat(measures)
	}
	return "(" + measures[0].ValuePMError() + ")x^(" + measures[1].ValuePMError() + ")"
}

func pair(measures []measure.Measure, term string) string {
	if len(measures) != 2 {
		return fallbackFormat(measures)
	}
	return "(" + measures[0].ValuePMError() + ") + (" + measures[1].ValuePMError() + ")" + term
}

func fallbackFormat(measures []measure.Measure) string {
	parts := make([]string, len(measures))
	for i, m := range measures {
		parts[i] = "(" + m.ValuePMError() + ")"
	}
	return strings.Join(parts, ", ")
}

func monomial(v string, d int) string {
	switch d {
	case 0:
		return ""
	case 1:
		return v
	default:
		return fmt.Sprintf("%s^%d", v, d)
	}
}

// model adapts a family to the solver's Model signature. Parameter vectors
// the family rejects evaluate to NaN so the solver treats them as invalid.
func model(f Family) func(x, params []float64) []float64 {
	return func(x, params []float64) []float64 {
		c, err := f.Curve(params)
		if err != nil {
			out := make([]float64, len(x))
			for i := range out {
				out[i] = math.NaN()
			}
			return out
		}
		return c.Evaluate(x)
	}
}
