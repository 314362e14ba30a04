package optimization

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LineModel is y = params[0] + params[1]*x.
func LineModel(x, params []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = params[0] + params[1]*v
	}
	return out
}

// ExpModel is y = params[0] * exp(params[1]*x).
func ExpModel(x, params []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = params[0] * math.Exp(params[1]*v)
	}
	return out
}

// NewTestProblem samples model at n evenly spaced points on [lo, hi] and adds
// Gaussian noise of the given scale drawn from rng. A nil rng adds no noise.
func NewTestProblem(model Model, truth []float64, n int, lo, hi, noise float64, rng *rand.Rand) Problem {
	x := floats.Span(make([]float64, n), lo, hi)
	y := model(x, truth)
	if rng != nil {
		for i := range y {
			y[i] += noise * rng.NormFloat64()
		}
	}
	return Problem{X: x, Y: y, Model: model}
}

// AssertFloat64SlicesEqual fails the test if got and want differ by more
// than tol at any index.
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatEqual fails the test if got and want differ in shape or by more
// than tol in any element.
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g, w := got.At(i, j), want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}
