package leastsq

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

// defaultMinimizeIterations is the per-parameter budget of major iterations
// for the general-purpose minimizers.
const defaultMinimizeIterations = 1000

// Minimizer solves least-squares problems by minimizing the sum of squared
// residuals with a general-purpose gonum method.
type Minimizer struct {
	method optimization.Method
	config optimization.SolverConfig
	logger *zap.Logger
}

// NewBFGS returns a Minimizer running BFGS on a finite-difference gradient.
func NewBFGS(config optimization.SolverConfig, logger *zap.Logger) *Minimizer {
	return newMinimizer(optimization.MethodBFGS, config, logger)
}

// NewNelderMead returns a derivative-free Minimizer.
func NewNelderMead(config optimization.SolverConfig, logger *zap.Logger) *Minimizer {
	return newMinimizer(optimization.MethodNelderMead, config, logger)
}

func newMinimizer(method optimization.Method, config optimization.SolverConfig, logger *zap.Logger) *Minimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Minimizer{
		method: method,
		config: config,
		logger: logger.Named(string(method)),
	}
}

// Method implements optimization.Solver.
func (m *Minimizer) Method() optimization.Method { return m.method }

// Solve implements optimization.Solver.
func (m *Minimizer) Solve(ctx context.Context, p optimization.Problem, init []float64) (*optimization.Solution, error) {
	op := "Minimize(" + string(m.method) + ")"

	k := len(init)
	if err := p.Validate(k); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithComponent(component).WithOperation(op)
	}
	if ssr := p.SSR(init); !isFinite(ssr) {
		return nil, optimization.WrapError(optimization.ErrDegenerate, "non-finite residuals at the initial guess").
			WithComponent(component).WithOperation(op)
	}

	cfg := m.config
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMinimizeIterations * (k + 1)
	}
	cfg = cfg.WithDefaults(k)

	problem := optimize.Problem{Func: p.SSR}
	var method optimize.Method
	switch m.method {
	case optimization.MethodBFGS:
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, p.SSR, x, &fd.Settings{Formula: fd.Central})
		}
		method = &optimize.BFGS{}
	case optimization.MethodNelderMead:
		method = &optimize.NelderMead{}
	default:
		return nil, optimization.WrapErrorf(optimization.ErrUnknownMethod, "method %q", m.method).
			WithComponent(component).WithOperation(op)
	}

	settings := &optimize.Settings{
		MajorIterations:   cfg.MaxIterations,
		GradientThreshold: 1e-10,
		Converger: &contextConverger{
			ctx: ctx,
			inner: &optimize.FunctionConverge{
				Absolute:   cfg.Tolerance,
				Relative:   cfg.Tolerance,
				Iterations: 50 * (k + 1),
			},
		},
	}

	result, err := optimize.Minimize(problem, init, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if result == nil {
		return nil, optimization.WrapError(err, "minimize").WithComponent(component).WithOperation(op)
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return nil, optimization.WrapErrorf(optimization.ErrNotConverged, "%s after %d iterations",
			result.Status, result.MajorIterations).WithComponent(component).WithOperation(op)
	}
	if err != nil && !errors.Is(err, optimize.ErrLinesearcherFailure) {
		return nil, optimization.WrapError(err, "minimize").WithComponent(component).WithOperation(op)
	}
	if !isFinite(result.F) {
		return nil, optimization.WrapError(optimization.ErrDegenerate, "non-finite optimum").
			WithComponent(component).WithOperation(op)
	}

	m.logger.Debug("converged",
		zap.Stringer("status", result.Status),
		zap.Int("iterations", result.MajorIterations),
		zap.Int("evaluations", result.FuncEvaluations),
		zap.Float64("ssr", result.F),
	)

	params := append([]float64(nil), result.X...)
	jac := mat.NewDense(len(p.Y), k, nil)
	fd.Jacobian(jac, func(dst, x []float64) { p.Residuals(dst, x) }, params, jacobianSettings)

	return &optimization.Solution{
		Params:      params,
		Covariance:  Covariance(jac, result.F),
		Residual:    optimization.RMS(result.F, len(p.Y)),
		Iterations:  result.MajorIterations,
		Evaluations: result.FuncEvaluations + 2*k,
		Method:      m.method,
	}, nil
}

// contextConverger stops the minimization once ctx is done.
type contextConverger struct {
	ctx   context.Context
	inner optimize.Converger
}

func (c *contextConverger) Init(dim int) { c.inner.Init(dim) }

func (c *contextConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.Failure
	}
	return c.inner.Converged(loc)
}
