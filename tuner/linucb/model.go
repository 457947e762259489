// Package linucb implements the disjoint linear upper-confidence-bound model:
// one ridge regression per learning unit, each estimating expected reward and
// an uncertainty width for a feature vector.
//
// Reference: Li et al., "A Contextual-Bandit Approach to Personalized News
// Article Recommendation", Algorithm 1.
package linucb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dim is the length of the per-pool feature vector built by Features.
const Dim = 5

// maxJitterAttempts bounds the diagonal jitter retries in solve.
const maxJitterAttempts = 12

// Features builds the regression feature vector for a pool holding share
// (size / total, in [0,1]) of the budget under context value ctx:
// [1, share, share², ctx, ctx·share]. The quadratic term lets a pool's fitted
// curve peak at an interior size.
func Features(share, ctx float64) []float64 {
	return []float64{1, share, share * share, ctx, ctx * share}
}

// unit holds A (d x d design matrix plus ridge) and b (d x 1 reward mapping).
type unit struct {
	a *mat.SymDense
	b *mat.VecDense
	n int
}

// Model is a set of independent learning units sharing a dimension and ridge
// term. It is not safe for concurrent use; the tuner engine serializes access.
type Model struct {
	dim    int
	lambda float64
	units  []*unit
}

// New creates units learning units of dimension dim. Each A starts as
// lambda·I and each b as the zero vector.
func New(units, dim int, lambda float64) (*Model, error) {
	if units < 1 {
		return nil, fmt.Errorf("linucb: need at least one unit, got %d", units)
	}
	if dim < 1 {
		return nil, fmt.Errorf("linucb: dimension must be positive, got %d", dim)
	}
	if !(lambda > 0) || math.IsInf(lambda, 0) {
		return nil, fmt.Errorf("linucb: regularization must be a positive finite number, got %v", lambda)
	}
	m := &Model{dim: dim, lambda: lambda, units: make([]*unit, units)}
	for i := range m.units {
		a := mat.NewSymDense(dim, nil)
		for j := 0; j < dim; j++ {
			a.SetSym(j, j, lambda)
		}
		m.units[i] = &unit{a: a, b: mat.NewVecDense(dim, nil)}
	}
	return m, nil
}

// Units is the number of learning units.
func (m *Model) Units() int { return len(m.units) }

// Dim is the feature dimension.
func (m *Model) Dim() int { return m.dim }

// Update folds one observation into unit u: A += x·xᵀ, b += r·x.
func (m *Model) Update(u int, x []float64, r float64) {
	st := m.units[u]
	xv := mat.NewVecDense(m.dim, append([]float64(nil), x...))
	st.a.SymRankOne(st.a, 1, xv)
	st.b.AddScaledVec(st.b, r, xv)
	st.n++
}

// Estimate returns the expected reward θ·x with θ = A⁻¹b and the confidence
// width sqrt(xᵀA⁻¹x) for unit u.
func (m *Model) Estimate(u int, x []float64) (mean, width float64) {
	st := m.units[u]
	xv := mat.NewVecDense(m.dim, append([]float64(nil), x...))
	chol := m.factorize(st.a)

	var theta mat.VecDense
	if err := chol.SolveVecTo(&theta, st.b); err != nil {
		// Condition warnings still yield a usable solution.
		if _, ok := err.(mat.Condition); !ok {
			return 0, 0
		}
	}
	var ainvx mat.VecDense
	if err := chol.SolveVecTo(&ainvx, xv); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return mat.Dot(xv, &theta), 0
		}
	}
	variance := mat.Dot(xv, &ainvx)
	return mat.Dot(xv, &theta), math.Sqrt(math.Max(0, variance))
}

// factorize returns the Cholesky factorization of a, adding growing diagonal
// jitter until it succeeds. With lambda > 0 the first attempt succeeds for
// every positive semi-definite accumulator; the fallback covers rounding.
func (m *Model) factorize(a *mat.SymDense) *mat.Cholesky {
	var chol mat.Cholesky
	if chol.Factorize(a) {
		return &chol
	}
	jitter := m.lambda * 1e-6
	work := mat.NewSymDense(m.dim, nil)
	for attempt := 0; attempt < maxJitterAttempts; attempt++ {
		work.CopySym(a)
		for j := 0; j < m.dim; j++ {
			work.SetSym(j, j, work.At(j, j)+jitter)
		}
		if chol.Factorize(work) {
			return &chol
		}
		jitter *= 10
	}
	// Fall back to the bare regularizer, which is always positive definite.
	work.Zero()
	for j := 0; j < m.dim; j++ {
		work.SetSym(j, j, m.lambda)
	}
	chol.Factorize(work)
	return &chol
}

// UnitSnapshot is the raw accumulator state of one learning unit.
type UnitSnapshot struct {
	A []float64 // row-major d x d
	B []float64
	N int
}

// Snapshot copies the accumulator state of every unit.
func (m *Model) Snapshot() []UnitSnapshot {
	out := make([]UnitSnapshot, len(m.units))
	for i, st := range m.units {
		a := make([]float64, 0, m.dim*m.dim)
		for r := 0; r < m.dim; r++ {
			for c := 0; c < m.dim; c++ {
				a = append(a, st.a.At(r, c))
			}
		}
		out[i] = UnitSnapshot{
			A: a,
			B: append([]float64(nil), st.b.RawVector().Data...),
			N: st.n,
		}
	}
	return out
}
