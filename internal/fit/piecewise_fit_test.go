package fit

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/curvefit/internal/curves"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

func twoSlopes(x float64) float64 {
	if x < 10 {
		return 2*x + 1
	}
	return -3*x + 50
}

func TestPiecewiseMatchesManualCurve(t *testing.T) {
	s := makeSeries(t, grid(21, 0, 20), twoSlopes, 0, 0)

	pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{10}, seeded(3))
	require.NoError(t, err)

	segs := pf.Segments()
	require.Len(t, segs, 2)
	optimization.AssertFloat64SlicesEqual(t, segs[0].Params(), []float64{1, 2}, 1e-6)
	optimization.AssertFloat64SlicesEqual(t, segs[1].Params(), []float64{50, -3}, 1e-6)

	pw, err := curves.NewPiecewise([]float64{10}, []curves.Curve{segs[0].Curve(), segs[1].Curve()})
	require.NoError(t, err)
	manual := curves.New(pw)

	x := grid(81, -5, 25)
	assert.Equal(t, manual.Evaluate(x), pf.Evaluate(x))

	at := pf.Evaluate([]float64{9.5, 10, 12})
	assert.InDelta(t, 2*9.5+1, at[0], 1e-6)
	assert.InDelta(t, 20, at[1], 1e-6)
	assert.InDelta(t, 14, at[2], 1e-6)

	assert.Equal(t, "PW:Poly(1)-[10]Poly(1)", pf.Kind())
	assert.Equal(t, 4, pf.DOF())
	assert.Equal(t, []float64{10}, pf.Breakpoints())
	assert.Equal(t, segs[0].String()+" | "+segs[1].String(), pf.String())
}

func TestPiecewiseCostIsRootMeanSquare(t *testing.T) {
	s := makeSeries(t, grid(40, 0, 19.5), twoSlopes, 0.3, 21)

	pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{10}, seeded(5))
	require.NoError(t, err)

	c1, c2 := pf.Segments()[0].Cost(), pf.Segments()[1].Cost()
	require.NotEqual(t, c1, c2)
	assert.InDelta(t, math.Sqrt((c1*c1+c2*c2)/2), pf.Cost(), 1e-12)
	assert.Greater(t, pf.Cost(), (c1+c2)/2)
}

func TestPiecewiseSegmentsCoverSeries(t *testing.T) {
	s := makeSeries(t, grid(30, 0, 29), func(x float64) float64 { return x }, 0, 0)

	pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{5, 17}, seeded(1))
	require.NoError(t, err)
	require.Len(t, pf.Segments(), 3)
	assert.Equal(t, 6, pf.DOF())
	assert.Equal(t, "PW:Poly(1)-[5]Poly(1)-[17]Poly(1)", pf.Kind())
	assert.Equal(t, 2, strings.Count(pf.String(), " | "))

	edges, err := segmentEdges(s, []float64{5, 17})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 17, 30}, edges)
}

func TestPiecewiseBreakpointErrors(t *testing.T) {
	s := makeSeries(t, grid(21, 0, 20), twoSlopes, 0, 0)

	tests := []struct {
		name        string
		breakpoints []float64
	}{
		{name: "not in index", breakpoints: []float64{10.5}},
		{name: "first point leaves empty head", breakpoints: []float64{0}},
		{name: "repeated", breakpoints: []float64{10, 10}},
		{name: "decreasing", breakpoints: []float64{12, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), tt.breakpoints, seeded(1))
			assert.Nil(t, pf)
			assert.ErrorIs(t, err, ErrBreakpoint)
		})
	}
}

func TestPiecewiseShortSegment(t *testing.T) {
	s := makeSeries(t, grid(21, 0, 20), twoSlopes, 0, 0)

	pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{2}, seeded(1))
	assert.Nil(t, pf)
	assert.ErrorIs(t, err, ErrInvalidSeries)

	pf, err = NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{3}, seeded(1))
	require.NoError(t, err)
	assert.Len(t, pf.Segments(), 2)
}

func TestPiecewiseSegmentFailurePropagates(t *testing.T) {
	s := makeSeries(t, grid(21, 0, 20), twoSlopes, 0, 0)
	solver := &failingSolver{}
	opts := seeded(1)
	opts.Solver = solver

	pf, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{10}, opts)
	assert.Nil(t, pf)
	assert.ErrorIs(t, err, optimization.ErrNotConverged)
	oe, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "fake", oe.Component)
	assert.Equal(t, 1, solver.calls)
}

func TestPiecewiseKeys(t *testing.T) {
	s := makeSeries(t, grid(40, 0, 19.5), twoSlopes, 0.3, 21)

	a, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{10}, seeded(8))
	require.NoError(t, err)
	b, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{10}, seeded(8))
	require.NoError(t, err)
	c, err := NewPiecewiseFit(context.Background(), s, Polynomial{}, Degree(1), []float64{9.5}, seeded(8))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))
	assert.True(t, strings.HasPrefix(a.Key(), "PW[10]{Poly(1)|"))
}
