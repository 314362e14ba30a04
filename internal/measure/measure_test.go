package measure

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundSignificantHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		x      float64
		digits int
		want   string
	}{
		{name: "odd half", x: 0.00115, digits: 2, want: "0.0012"},
		{name: "even half", x: 0.00145, digits: 2, want: "0.0015"},
		{name: "just over half", x: 0.001151, digits: 2, want: "0.0012"},
		{name: "just under half", x: 0.001149, digits: 2, want: "0.0011"},
		{name: "one digit odd", x: 1.5, digits: 1, want: "2"},
		{name: "one digit even", x: 2.5, digits: 1, want: "3"},
		{name: "negative tie rounds away from zero", x: -2.5, digits: 1, want: "-3"},
		{name: "large", x: 123456, digits: 3, want: "123000"},
		{name: "carry into next power", x: 9.96, digits: 2, want: "10"},
		{name: "non positive digits keep one", x: 0.0047, digits: -2, want: "0.005"},
		{name: "zero", x: 0, digits: 2, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundSignificant(tt.x, tt.digits)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestExponent(t *testing.T) {
	tests := []struct {
		x      float64
		want   int
		wantOK bool
	}{
		{x: 0, want: 0, wantOK: true},
		{x: math.Copysign(0, -1), want: 0, wantOK: true},
		{x: 1, want: 0, wantOK: true},
		{x: 9.99, want: 0, wantOK: true},
		{x: 10, want: 1, wantOK: true},
		{x: 0.00115, want: -3, wantOK: true},
		{x: -4.2e17, want: 17, wantOK: true},
		{x: 1e-300, want: -300, wantOK: true},
		{x: math.Inf(1), wantOK: false},
		{x: math.Inf(-1), wantOK: false},
		{x: math.NaN(), wantOK: false},
	}

	for _, tt := range tests {
		got, ok := Exponent(tt.x)
		assert.Equal(t, tt.wantOK, ok, "x=%v", tt.x)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "x=%v", tt.x)
		}
	}
}

func TestRound(t *testing.T) {
	t.Run("value precision follows the error", func(t *testing.T) {
		m := Round(3.14159, 0.0123, 2)
		assert.Equal(t, "3.142 ± 0.012", m.ValuePMError())
	})

	t.Run("larger error keeps fewer digits", func(t *testing.T) {
		m := Round(1234.5678, 56.7, 2)
		assert.Equal(t, "1235 ± 57", m.ValuePMError())
	})

	t.Run("error digits are configurable", func(t *testing.T) {
		m := Round(2.718281, 0.001234, 3)
		assert.Equal(t, "2.71828 ± 0.00123", m.ValuePMError())
	})

	t.Run("zero error", func(t *testing.T) {
		m := Round(3, 0, 2)
		assert.Equal(t, "3.0 ± 0.0", m.ValuePMError())
	})

	t.Run("zero value", func(t *testing.T) {
		m := Round(0, 0.25, 2)
		assert.Equal(t, "0.00 ± 0.25", m.ValuePMError())
	})

	t.Run("infinite value", func(t *testing.T) {
		m := Round(math.Inf(-1), 0.1, 2)
		assert.False(t, m.Value.Valid)
		assert.False(t, m.Error.Valid)
		assert.Equal(t, "None ± None", m.String())
	})

	t.Run("infinite error", func(t *testing.T) {
		m := Round(0.0372, math.Inf(1), 2)
		require.True(t, m.Value.Valid)
		assert.False(t, m.Error.Valid)
		assert.Equal(t, "0.04 ± None", m.ValuePMError())
	})

	t.Run("nan error is treated as unbounded", func(t *testing.T) {
		m := Round(12.5, math.NaN(), 2)
		assert.False(t, m.Error.Valid)
		assert.InDelta(t, 10.0, m.Float64(), 0)
	})

	t.Run("unit", func(t *testing.T) {
		m := Round(1.5, 0.25, 2).WithUnit("ms")
		assert.Equal(t, "1.50 ± 0.25 ms", m.String())
	})
}

func TestMeasureEquality(t *testing.T) {
	a := Round(2.00004, 0.01, 2)
	b := Round(1.99996, 0.0104, 2)
	c := Round(2.01, 0.01, 2)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())
	assert.False(t, a.Equal(a.WithUnit("s")))

	inf := Round(math.Inf(1), 1, 2)
	assert.True(t, inf.Equal(Round(math.Inf(-1), 3, 2)))
	assert.False(t, inf.Equal(a))
}
