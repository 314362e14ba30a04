// Package fit estimates curve parameters from data series and scores the
// fits with a cost that penalizes overfitting.
//
// A SeriesFit solves the least-squares problem twice: on a random partial
// sample and on the whole series. The growth of the residual per held-out
// point (the slope) measures how badly the partial fit extrapolates; the
// cost trades it against the partial residual.
package fit

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/copyleftdev/curvefit/internal/curves"
	"github.com/copyleftdev/curvefit/internal/measure"
	"github.com/copyleftdev/curvefit/internal/optimization"
	"github.com/copyleftdev/curvefit/internal/optimization/leastsq"
)

// Result is what both SeriesFit and PiecewiseFit expose to callers ranking
// fits.
type Result interface {
	Curve() curves.Curve
	Cost() float64
	Kind() string
	DOF() int
	Key() string
	Hash() uint64
	String() string
}

var (
	_ Result = (*SeriesFit)(nil)
	_ Result = (*PiecewiseFit)(nil)
)

// SeriesFit is one fitted family on one series. It is immutable.
type SeriesFit struct {
	family       Family
	method       optimization.Method
	curve        curves.Curve
	params       []float64
	measures     []measure.Measure
	residual     float64
	fullResidual float64
	slope        float64
	cost         float64
	n, nPartial  int
}

// NewSeriesFit fits family to series starting from init.
//
// A solver failure on either the partial or the full sample is returned as
// is; no fallback fit is produced.
func NewSeriesFit(ctx context.Context, series Series, family Family, init []float64, opts Options) (*SeriesFit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("%w: nil family", ErrParameters)
	}
	if _, err := family.Curve(init); err != nil {
		return nil, err
	}
	n := series.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSeries)
	}
	nPartial := int(opts.Fraction * float64(n))
	if nPartial < 1 {
		return nil, fmt.Errorf("%w: fraction %v of %d points leaves no sample", ErrInvalidSeries, opts.Fraction, n)
	}
	if nPartial < len(init) {
		return nil, fmt.Errorf("%w: %d sampled points for %d parameters", ErrInvalidSeries, nPartial, len(init))
	}

	solver := opts.Solver
	if solver == nil {
		method := opts.Method
		if method == "" {
			method = optimization.MethodLM
		}
		var err error
		solver, err = leastsq.NewSolver(method, optimization.SolverConfig{MaxIterations: opts.MaxIterations}, opts.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := opts.logger().Named("series_fit")

	partial := series.Sample(nPartial, opts.rng())
	sol, err := solver.Solve(ctx, problem(partial, family), init)
	if err != nil {
		return nil, err
	}
	full, err := solver.Solve(ctx, problem(series, family), init)
	if err != nil {
		return nil, err
	}

	var slope float64
	if n > nPartial {
		slope = (full.Residual - sol.Residual) / float64(n-nPartial)
	}

	curve, err := family.Curve(sol.Params)
	if err != nil {
		return nil, err
	}
	errs := sol.Errors()
	measures := make([]measure.Measure, len(sol.Params))
	for i, v := range sol.Params {
		measures[i] = measure.Round(v, errs[i], opts.ErrorTo)
	}

	f := &SeriesFit{
		family:       family,
		method:       solver.Method(),
		curve:        curve,
		params:       sol.Params,
		measures:     measures,
		residual:     sol.Residual,
		fullResidual: full.Residual,
		slope:        slope,
		cost:         Cost(sol.Residual, slope, opts.Overfit, opts.Sigma),
		n:            n,
		nPartial:     nPartial,
	}

	logger.Debug("fitted",
		zap.String("family", family.Name()),
		zap.Stringer("method", f.method),
		zap.Int("points", n),
		zap.Int("partial_points", nPartial),
		zap.Float64("residual", f.residual),
		zap.Float64("full_residual", f.fullResidual),
		zap.Float64("slope", f.slope),
		zap.Float64("cost", f.cost),
	)
	return f, nil
}

func problem(s Series, f Family) optimization.Problem {
	return optimization.Problem{X: s.x, Y: s.y, Model: model(f)}
}

// Curve returns the fitted curve.
func (f *SeriesFit) Curve() curves.Curve { return f.curve }

// Evaluate applies the fitted curve to x.
func (f *SeriesFit) Evaluate(x []float64) []float64 { return f.curve.Evaluate(x) }

// Family returns the fitted family.
func (f *SeriesFit) Family() Family { return f.family }

// Method returns the solver method that produced the fit.
func (f *SeriesFit) Method() optimization.Method { return f.method }

// Params returns the fitted parameters, unrounded.
func (f *SeriesFit) Params() []float64 { return append([]float64(nil), f.params...) }

// Measures returns the rounded parameters with their errors.
func (f *SeriesFit) Measures() []measure.Measure {
	return append([]measure.Measure(nil), f.measures...)
}

// Cost is the overfit-penalized score; lower is better.
func (f *SeriesFit) Cost() float64 { return f.cost }

// Residual is the RMS residual of the partial fit on its own sample.
func (f *SeriesFit) Residual() float64 { return f.residual }

// FullResidual is the RMS residual of the fit on the whole series.
func (f *SeriesFit) FullResidual() float64 { return f.fullResidual }

// Slope is the residual growth per held-out point.
func (f *SeriesFit) Slope() float64 { return f.slope }

// Kind is the kind tag of the fitted curve.
func (f *SeriesFit) Kind() string { return f.curve.Kind() }

// DOF is the number of parameters minus one.
func (f *SeriesFit) DOF() int { return len(f.params) - 1 }

// Key identifies the fit by kind and rounded parameters.
func (f *SeriesFit) Key() string {
	var b strings.Builder
	b.WriteString(f.Kind())
	for _, m := range f.measures {
		b.WriteByte('|')
		b.WriteString(m.Key())
	}
	return b.String()
}

// Hash is the xxhash of Key.
func (f *SeriesFit) Hash() uint64 { return xxhash.Sum64String(f.Key()) }

// Equal reports whether both fits have the same kind and rounded parameters.
func (f *SeriesFit) Equal(o *SeriesFit) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Key() == o.Key()
}

func (f *SeriesFit) String() string { return f.family.Format(f.measures) }
