package leastsq

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MatrixPool provides reusable matrices to reduce allocations across
// solves. It is safe for concurrent use. Matrices handed out are zeroed
// and sized as requested.
type MatrixPool struct {
	mu    sync.Mutex
	syms  []*mat.SymDense
	dense []*mat.Dense
	vecs  []*mat.VecDense
}

// NewMatrixPool creates an empty MatrixPool.
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		syms:  make([]*mat.SymDense, 0, 8),
		dense: make([]*mat.Dense, 0, 8),
		vecs:  make([]*mat.VecDense, 0, 8),
	}
}

var defaultPool = NewMatrixPool()

// GetSymDense returns an n×n symmetric matrix.
func (p *MatrixPool) GetSymDense(n int) *mat.SymDense {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := len(p.syms); k > 0 {
		m := p.syms[k-1]
		p.syms = p.syms[:k-1]
		m.Reset()
		m.ReuseAsSym(n)
		return m
	}
	return mat.NewSymDense(n, nil)
}

// PutSymDense returns m to the pool.
func (p *MatrixPool) PutSymDense(m *mat.SymDense) {
	p.mu.Lock()
	p.syms = append(p.syms, m)
	p.mu.Unlock()
}

// GetDense returns an r×c matrix.
func (p *MatrixPool) GetDense(r, c int) *mat.Dense {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := len(p.dense); k > 0 {
		m := p.dense[k-1]
		p.dense = p.dense[:k-1]
		m.Reset()
		m.ReuseAs(r, c)
		return m
	}
	return mat.NewDense(r, c, nil)
}

// PutDense returns m to the pool.
func (p *MatrixPool) PutDense(m *mat.Dense) {
	p.mu.Lock()
	p.dense = append(p.dense, m)
	p.mu.Unlock()
}

// GetVecDense returns a vector of length n.
func (p *MatrixPool) GetVecDense(n int) *mat.VecDense {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := len(p.vecs); k > 0 {
		v := p.vecs[k-1]
		p.vecs = p.vecs[:k-1]
		v.Reset()
		v.ReuseAsVec(n)
		return v
	}
	return mat.NewVecDense(n, nil)
}

// PutVecDense returns v to the pool.
func (p *MatrixPool) PutVecDense(v *mat.VecDense) {
	p.mu.Lock()
	p.vecs = append(p.vecs, v)
	p.mu.Unlock()
}

// lmWorkspace holds the matrices of one Levenberg-Marquardt solve.
type lmWorkspace struct {
	pool   *MatrixPool
	jac    *mat.Dense    // n×k
	jtj    *mat.SymDense // k×k
	damped *mat.SymDense // k×k
	grad   *mat.VecDense // k
	step   *mat.VecDense // k
}

func newLMWorkspace(pool *MatrixPool, n, k int) *lmWorkspace {
	return &lmWorkspace{
		pool:   pool,
		jac:    pool.GetDense(n, k),
		jtj:    pool.GetSymDense(k),
		damped: pool.GetSymDense(k),
		grad:   pool.GetVecDense(k),
		step:   pool.GetVecDense(k),
	}
}

func (w *lmWorkspace) release() {
	w.pool.PutDense(w.jac)
	w.pool.PutSymDense(w.jtj)
	w.pool.PutSymDense(w.damped)
	w.pool.PutVecDense(w.grad)
	w.pool.PutVecDense(w.step)
}
