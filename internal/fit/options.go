package fit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/curvefit/internal/measure"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

// Default fit options.
const (
	DefaultFraction = 0.9
	DefaultOverfit  = -1.0
	DefaultSigma    = 10.0
)

// Options controls a single fit. Start from DefaultOptions: the zero value
// of Overfit is a meaningful setting and is not replaced.
type Options struct {
	// Method selects the solver. Empty means Levenberg-Marquardt.
	Method optimization.Method

	// Fraction of the series drawn for the partial fit, in (0, 1].
	Fraction float64

	// Overfit shifts the cost between the partial residual (large values)
	// and the held-out residual slope (small values).
	Overfit float64

	// Sigma scales the slope term of the cost. Must be positive.
	Sigma float64

	// ErrorTo is the number of significant digits kept in parameter errors.
	ErrorTo int

	// MaxIterations bounds the solver; zero selects its default.
	MaxIterations int

	// Rand draws the partial sample. When nil a source seeded with Seed is
	// used, and a zero Seed means a time-based seed.
	Rand *rand.Rand
	Seed int64

	// Solver overrides Method when set.
	Solver optimization.Solver

	Logger *zap.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Method:   optimization.MethodLM,
		Fraction: DefaultFraction,
		Overfit:  DefaultOverfit,
		Sigma:    DefaultSigma,
		ErrorTo:  measure.DefaultErrorDigits,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	switch {
	case !(o.Fraction > 0 && o.Fraction <= 1):
		return fmt.Errorf("%w: fraction must be in (0, 1], got %v", ErrOptions, o.Fraction)
	case math.IsNaN(o.Overfit) || math.IsInf(o.Overfit, 0):
		return fmt.Errorf("%w: overfit must be finite, got %v", ErrOptions, o.Overfit)
	case !(o.Sigma > 0) || math.IsInf(o.Sigma, 0):
		return fmt.Errorf("%w: sigma must be positive, got %v", ErrOptions, o.Sigma)
	case o.ErrorTo < 1:
		return fmt.Errorf("%w: error_to must be at least 1, got %d", ErrOptions, o.ErrorTo)
	case o.MaxIterations < 0:
		return fmt.Errorf("%w: max iterations must not be negative, got %d", ErrOptions, o.MaxIterations)
	}
	if o.Solver == nil && o.Method != "" {
		if _, err := optimization.ParseMethod(string(o.Method)); err != nil {
			return err
		}
	}
	return nil
}

// Cost combines a partial residual and a residual slope:
//
//	residual·e^overfit + |slope|·sigma·e^-overfit
func Cost(residual, slope, overfit, sigma float64) float64 {
	return residual*math.Exp(overfit) + math.Abs(slope)*sigma*math.Exp(-overfit)
}

func (o Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
