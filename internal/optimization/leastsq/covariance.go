package leastsq

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Covariance estimates the parameter covariance from the residual Jacobian
// jac (n×k) at the optimum and the sum of squared residuals:
//
//	pinv(JᵀJ) · ssr / (n - k)
//
// The pseudo-inverse drops singular values below eps·max(n,k)·s_max. When
// n <= k, or the decomposition fails, every entry is +Inf.
func Covariance(jac mat.Matrix, ssr float64) *mat.SymDense {
	n, k := jac.Dims()
	cov := mat.NewSymDense(k, nil)
	if n <= k || !isFinite(ssr) {
		return unbounded(cov)
	}

	var svd mat.SVD
	if ok := svd.Factorize(jac, mat.SVDThinV); !ok {
		return unbounded(cov)
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	threshold := eps * float64(max(n, k)) * values[0]
	inv := make([]float64, len(values))
	for i, s := range values {
		if s > threshold {
			inv[i] = 1 / (s * s)
		}
	}

	scale := ssr / float64(n-k)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			var sum float64
			for l, w := range inv {
				sum += v.At(i, l) * v.At(j, l) * w
			}
			cov.SetSym(i, j, sum*scale)
		}
	}
	return cov
}

// eps is the float64 machine epsilon.
const eps = 0x1p-52

func unbounded(cov *mat.SymDense) *mat.SymDense {
	k := cov.SymmetricDim()
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			cov.SetSym(i, j, math.Inf(1))
		}
	}
	return cov
}
