// Package measure rounds a value and its uncertainty to a canonical decimal
// precision derived from their relative orders of magnitude.
package measure

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultErrorDigits is the number of significant digits kept in the error.
	DefaultErrorDigits = 2

	// unboundedDigits is used for a value whose error is not finite.
	unboundedDigits = 1
)

// Measure is a value with its uncertainty, both rounded half-up. A value
// or error that is not representable is reported as not Valid.
type Measure struct {
	Value decimal.NullDecimal
	Error decimal.NullDecimal
	Unit  string
}

// Round builds a Measure keeping errorDigits significant digits in the
// error and the matching precision in the value.
func Round(value, err float64, errorDigits int) Measure {
	if errorDigits < 1 {
		errorDigits = DefaultErrorDigits
	}
	if !finite(value) {
		return Measure{}
	}
	if !finite(err) {
		return Measure{Value: valid(RoundSignificant(value, unboundedDigits))}
	}

	ve, _ := Exponent(value)
	ee, _ := Exponent(err)
	precision := ve - ee + errorDigits
	return Measure{
		Value: valid(RoundSignificant(value, precision)),
		Error: valid(RoundSignificant(err, errorDigits)),
	}
}

// WithUnit returns a copy of m carrying unit.
func (m Measure) WithUnit(unit string) Measure {
	m.Unit = unit
	return m
}

// Equal compares value, error and unit numerically.
func (m Measure) Equal(o Measure) bool {
	return nullEqual(m.Value, o.Value) && nullEqual(m.Error, o.Error) && m.Unit == o.Unit
}

// Key is a canonical text form: equal measures have equal keys.
func (m Measure) Key() string {
	return canonical(m.Value) + "|" + canonical(m.Error) + "|" + m.Unit
}

// ValuePMError renders "value ± error".
func (m Measure) ValuePMError() string {
	return display(m.Value) + " ± " + display(m.Error)
}

func (m Measure) String() string {
	if m.Unit == "" {
		return m.ValuePMError()
	}
	return m.ValuePMError() + " " + m.Unit
}

// Float64 returns the rounded value, or NaN when it is not representable.
func (m Measure) Float64() float64 {
	if !m.Value.Valid {
		return math.NaN()
	}
	f, _ := m.Value.Decimal.Float64()
	return f
}

// Exponent returns the base-10 order of magnitude of x as written in
// scientific notation. Exponent(0) is 0. For infinite or NaN input ok is
// false and the exponent is unbounded.
func Exponent(x float64) (exp int, ok bool) {
	if !finite(x) {
		return math.MaxInt32, false
	}
	if x == 0 {
		return 0, true
	}
	s := strconv.FormatFloat(x, 'e', -1, 64)
	e, err := strconv.Atoi(s[strings.IndexByte(s, 'e')+1:])
	if err != nil {
		return 0, false
	}
	return e, true
}

// RoundSignificant rounds x half-up (away from zero on ties) to digits
// significant digits. The tie is decided on the shortest decimal form of x,
// so 0.00115 rounds to 0.0012. Fewer than one digit keeps one.
func RoundSignificant(x float64, digits int) decimal.Decimal {
	exp, _ := Exponent(x)
	places := digits - 1
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(x).
		Shift(int32(-exp)).
		Round(int32(places)).
		Shift(int32(exp))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func canonical(d decimal.NullDecimal) string {
	if !d.Valid {
		return "None"
	}
	return d.Decimal.String()
}

// display keeps the trailing zeros that carry the rounding precision.
func display(d decimal.NullDecimal) string {
	if !d.Valid {
		return "None"
	}
	if exp := d.Decimal.Exponent(); exp < 0 {
		return d.Decimal.StringFixed(-exp)
	}
	return d.Decimal.String()
}
