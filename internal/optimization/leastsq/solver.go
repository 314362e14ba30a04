// Package leastsq provides nonlinear least-squares solvers and the
// covariance estimate shared by them.
package leastsq

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/curvefit/internal/optimization"
)

const component = "leastsq"

// NewSolver returns the solver for method.
func NewSolver(method optimization.Method, config optimization.SolverConfig, logger *zap.Logger) (optimization.Solver, error) {
	switch method {
	case optimization.MethodLM:
		return NewLevenbergMarquardt(config, logger), nil
	case optimization.MethodBFGS:
		return NewBFGS(config, logger), nil
	case optimization.MethodNelderMead:
		return NewNelderMead(config, logger), nil
	default:
		return nil, optimization.WrapErrorf(optimization.ErrUnknownMethod, "method %q", method).
			WithComponent(component).WithOperation("NewSolver")
	}
}
