package curves

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPiecewiseSelectsOnePiecePerElement(t *testing.T) {
	f := New(mustPoly(t, []float64{1, 2}))
	g := New(mustPoly(t, []float64{-5, 0.5}))
	pw, err := NewPiecewise([]float64{10}, []Curve{f, g})
	require.NoError(t, err)

	x := []float64{-3, 0, 9.99, 10, 10.01, 25}
	got := pw.Evaluate(x)
	fv, gv := f.Evaluate(x), g.Evaluate(x)
	for i, v := range x {
		if v < 10 {
			assert.Equal(t, fv[i], got[i], "x=%v", v)
		} else {
			assert.Equal(t, gv[i], got[i], "x=%v", v)
		}
	}
}

func TestPiecewiseSkipsPiecesOutsideTheirInterval(t *testing.T) {
	// A log piece would produce NaN for the negative inputs if it were
	// evaluated there.
	lg, err := NewLog(1)
	require.NoError(t, err)
	pw, err := NewPiecewise([]float64{0, 5}, []Curve{Constant(-1), New(lg), Constant(7)})
	require.NoError(t, err)

	got := pw.Evaluate([]float64{-2, -0.5, 1, math.E, 5, 6})
	assert.Equal(t, -1.0, got[0])
	assert.Equal(t, -1.0, got[1])
	assert.Equal(t, 0.0, got[2])
	assert.InDelta(t, 1.0, got[3], 1e-12)
	assert.Equal(t, 7.0, got[4])
	assert.Equal(t, 7.0, got[5])
}

func TestPiecewiseScaling(t *testing.T) {
	p := New(mustPower(t, 0.5, 1.2))
	pw, err := NewPiecewise([]float64{13}, []Curve{p, p.Negate()})
	require.NoError(t, err)

	curve := New(pw).Scale(2)
	assert.InDelta(t, math.Pow(10.1, 1.2), curve.Evaluate([]float64{10.1})[0], 1e-9)
	assert.InDelta(t, -math.Pow(14, 1.2), curve.Evaluate([]float64{14})[0], 1e-9)
	assert.Equal(t, "(1)x^(1.2) | (-1)x^(1.2)", curve.String())

	term := curve.Terms()[0].(Piecewise)
	assert.Equal(t, 2.0, term.factor())
	assert.Equal(t, []float64{13}, term.Breakpoints())
}

func TestPiecewiseKind(t *testing.T) {
	lin := New(mustPoly(t, []float64{1, 1}))
	quad := New(mustPoly(t, []float64{1, 1, 1}))
	pw, err := NewPiecewise([]float64{10, 20.5}, []Curve{lin, quad, lin})
	require.NoError(t, err)

	assert.Equal(t, "PW:Poly(1)-[10]Poly(2)-[20.5]Poly(1)", pw.Kind())
	assert.Equal(t, pw.Kind(), New(pw).Kind())

	other, err := NewPiecewise([]float64{12, 20.5}, []Curve{lin, quad, lin})
	require.NoError(t, err)
	assert.NotEqual(t, pw.Kind(), other.Kind())
}

func TestPiecewiseConstruction(t *testing.T) {
	lin := New(mustPoly(t, []float64{1, 1}))

	tests := []struct {
		name        string
		breakpoints []float64
		pieces      []Curve
		wantErr     bool
	}{
		{name: "one breakpoint", breakpoints: []float64{1}, pieces: []Curve{lin, lin}},
		{name: "no breakpoints", breakpoints: nil, pieces: []Curve{lin}},
		{name: "too few pieces", breakpoints: []float64{1, 2}, pieces: []Curve{lin, lin}, wantErr: true},
		{name: "too many pieces", breakpoints: []float64{1}, pieces: []Curve{lin, lin, lin}, wantErr: true},
		{name: "not increasing", breakpoints: []float64{2, 1}, pieces: []Curve{lin, lin, lin}, wantErr: true},
		{name: "repeated", breakpoints: []float64{1, 1}, pieces: []Curve{lin, lin, lin}, wantErr: true},
		{name: "nan", breakpoints: []float64{math.NaN()}, pieces: []Curve{lin, lin}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPiecewise(tt.breakpoints, tt.pieces)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}
