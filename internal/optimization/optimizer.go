package optimization

import (
	"context"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Method names a least-squares solver.
type Method string

const (
	// MethodLM is damped Gauss-Newton (Levenberg-Marquardt).
	MethodLM Method = "lm"
	// MethodBFGS minimizes the sum of squared residuals with quasi-Newton steps.
	MethodBFGS Method = "bfgs"
	// MethodNelderMead minimizes the sum of squared residuals without gradients.
	MethodNelderMead Method = "nelder-mead"
)

// Methods lists every supported method in preference order.
var Methods = []Method{MethodLM, MethodBFGS, MethodNelderMead}

// ParseMethod resolves a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", WrapErrorf(ErrUnknownMethod, "method %q", s)
}

// ParseMethods resolves a comma separated list of method names.
func ParseMethods(list []string) ([]Method, error) {
	out := make([]Method, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		m, err := ParseMethod(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, WrapError(ErrUnknownMethod, "no methods given")
	}
	return out, nil
}

func (m Method) String() string { return string(m) }

// Model evaluates a parametric curve at every element of x.
type Model func(x, params []float64) []float64

// Problem is a least-squares problem: find params minimizing
// sum((Model(X, params) - Y)^2).
type Problem struct {
	X     []float64
	Y     []float64
	Model Model
}

// Validate checks the problem is well formed for nParams parameters.
func (p Problem) Validate(nParams int) error {
	switch {
	case p.Model == nil:
		return NewError("model must not be nil")
	case len(p.X) == 0:
		return NewError("no observations")
	case len(p.X) != len(p.Y):
		return NewErrorf("dimension mismatch: %d inputs for %d observations", len(p.X), len(p.Y))
	case nParams == 0:
		return NewError("no parameters")
	}
	return nil
}

// Residuals writes Model(X, params) - Y into dst, allocating when dst is nil.
func (p Problem) Residuals(dst, params []float64) []float64 {
	pred := p.Model(p.X, params)
	if dst == nil {
		dst = make([]float64, len(p.Y))
	}
	floats.SubTo(dst, pred, p.Y)
	return dst
}

// SSR is the sum of squared residuals at params.
func (p Problem) SSR(params []float64) float64 {
	r := p.Residuals(nil, params)
	return floats.Dot(r, r)
}

// Solution is the outcome of a successful solve.
type Solution struct {
	// Params are the fitted parameters.
	Params []float64
	// Covariance is the estimated parameter covariance. Every entry is +Inf
	// when it cannot be estimated.
	Covariance *mat.SymDense
	// Residual is the root mean square of the residuals.
	Residual float64
	// Iterations is the number of major iterations taken.
	Iterations int
	// Evaluations counts model evaluations.
	Evaluations int
	Method      Method
}

// Errors returns the per-parameter standard errors, sqrt(diag(Covariance)).
func (s *Solution) Errors() []float64 {
	out := make([]float64, len(s.Params))
	for i := range out {
		if s.Covariance == nil {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = math.Sqrt(s.Covariance.At(i, i))
	}
	return out
}

// Solver solves least-squares problems from an initial guess.
type Solver interface {
	// Solve runs the solver. It honors ctx cancellation between iterations.
	Solve(ctx context.Context, p Problem, init []float64) (*Solution, error)

	// Method reports which algorithm the solver runs.
	Method() Method
}

// SolverConfig configures a Solver.
type SolverConfig struct {
	// MaxIterations bounds the number of major iterations. Zero selects a
	// method-specific default.
	MaxIterations int

	// Tolerance is the relative change in cost treated as convergence.
	// Zero selects 1e-12.
	Tolerance float64
}

// DefaultTolerance is used when SolverConfig.Tolerance is zero.
const DefaultTolerance = 1e-12

// WithDefaults returns a copy of c with zero fields replaced.
func (c SolverConfig) WithDefaults(nParams int) SolverConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 200 * (nParams + 1)
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// RMS returns sqrt(ssr/n).
func RMS(ssr float64, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(ssr / float64(n))
}

