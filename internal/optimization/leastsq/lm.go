package leastsq

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

const (
	initialDamping = 1e-3
	minDamping     = 1e-15
	// Above this damping no step can lower the cost: the current point is
	// stationary to working precision.
	maxDamping = 1e16
	// Floor for the damping diagonal so flat directions still get damped.
	diagFloor = 1e-12
)

var jacobianSettings = &fd.JacobianSettings{Formula: fd.Central}

// LevenbergMarquardt solves least-squares problems by damped Gauss-Newton
// steps on a finite-difference Jacobian.
type LevenbergMarquardt struct {
	config optimization.SolverConfig
	pool   *MatrixPool
	logger *zap.Logger
}

// NewLevenbergMarquardt creates the solver. A nil logger disables logging.
func NewLevenbergMarquardt(config optimization.SolverConfig, logger *zap.Logger) *LevenbergMarquardt {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevenbergMarquardt{
		config: config,
		pool:   defaultPool,
		logger: logger.Named("lm"),
	}
}

// Method implements optimization.Solver.
func (s *LevenbergMarquardt) Method() optimization.Method { return optimization.MethodLM }

// Solve implements optimization.Solver.
func (s *LevenbergMarquardt) Solve(ctx context.Context, p optimization.Problem, init []float64) (*optimization.Solution, error) {
	const op = "LM.Solve"

	k := len(init)
	if err := p.Validate(k); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithComponent(component).WithOperation(op)
	}
	n := len(p.Y)
	cfg := s.config.WithDefaults(k)

	ws := newLMWorkspace(s.pool, n, k)
	defer ws.release()

	params := append([]float64(nil), init...)
	trial := make([]float64, k)
	r := p.Residuals(nil, params)
	rTrial := make([]float64, n)
	cost := floats.Dot(r, r)
	evals := 1
	if !isFinite(cost) {
		return nil, optimization.WrapError(optimization.ErrDegenerate, "non-finite residuals at the initial guess").
			WithComponent(component).WithOperation(op)
	}

	residuals := func(dst, x []float64) { p.Residuals(dst, x) }
	lambda := initialDamping

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cost == 0 {
			return s.solution(p, params, cost, iter-1, evals, ws)
		}

		fd.Jacobian(ws.jac, residuals, params, jacobianSettings)
		evals += 2 * k
		if !allFinite(ws.jac.RawMatrix().Data) {
			return nil, optimization.WrapErrorf(optimization.ErrDegenerate, "non-finite jacobian at iteration %d", iter).
				WithComponent(component).WithOperation(op)
		}

		// Normal equations: (JᵀJ + λ·D) δ = -Jᵀr.
		ws.jtj.SymOuterK(1, ws.jac.T())
		ws.grad.MulVec(ws.jac.T(), mat.NewVecDense(n, r))

		accepted, stationary := false, false
		for !accepted {
			if lambda > maxDamping {
				stationary = true
				break
			}
			ws.damped.CopySym(ws.jtj)
			for i := 0; i < k; i++ {
				d := math.Max(ws.jtj.At(i, i), diagFloor)
				ws.damped.SetSym(i, i, ws.jtj.At(i, i)+lambda*d)
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(ws.damped); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(ws.step, ws.grad); err != nil {
				lambda *= 10
				continue
			}

			step := ws.step.RawVector().Data
			floats.SubTo(trial, params, step)
			p.Residuals(rTrial, trial)
			evals++
			trialCost := floats.Dot(rTrial, rTrial)

			if !isFinite(trialCost) || trialCost >= cost {
				lambda *= 10
				continue
			}
			accepted = true

			decrease := cost - trialCost
			stepNorm := floats.Norm(step, 2)
			copy(params, trial)
			copy(r, rTrial)
			cost = trialCost
			lambda = math.Max(lambda/10, minDamping)

			if decrease <= cfg.Tolerance*(cost+decrease) ||
				stepNorm <= cfg.Tolerance*(floats.Norm(params, 2)+cfg.Tolerance) {
				stationary = true
			}
		}

		if stationary {
			s.logger.Debug("converged",
				zap.Int("iterations", iter),
				zap.Int("evaluations", evals),
				zap.Float64("ssr", cost),
				zap.Float64("damping", lambda),
			)
			return s.solution(p, params, cost, iter, evals, ws)
		}
	}

	return nil, optimization.WrapErrorf(optimization.ErrNotConverged, "%d iterations", cfg.MaxIterations).
		WithComponent(component).WithOperation(op)
}

func (s *LevenbergMarquardt) solution(p optimization.Problem, params []float64, ssr float64, iters, evals int, ws *lmWorkspace) (*optimization.Solution, error) {
	fd.Jacobian(ws.jac, func(dst, x []float64) { p.Residuals(dst, x) }, params, jacobianSettings)
	return &optimization.Solution{
		Params:      params,
		Covariance:  Covariance(ws.jac, ssr),
		Residual:    optimization.RMS(ssr, len(p.Y)),
		Iterations:  iters,
		Evaluations: evals + 2*len(params),
		Method:      optimization.MethodLM,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
