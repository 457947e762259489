// Package feature maps raw per-pool invocation counts onto bounded context
// values in (0, 1) so that pools with very different call rates produce
// comparable regression features.
package feature

import (
	"fmt"
	"math"
)

// maxExponent bounds the logistic argument. Beyond |30| the float64 result
// would round to exactly 0 or 1, which breaks the open-interval contract.
const maxExponent = 30.0

// maxArctanArg bounds the arctan argument for the same reason.
const maxArctanArg = 1e12

// Transform maps a non-negative invocation count onto (0, 1).
// Implementations are pure and monotonically non-decreasing in x.
type Transform interface {
	Apply(x float64) float64
	Name() string
}

// Sigmoid is the logistic curve 1 / (1 + exp(-K·(x - X0))).
type Sigmoid struct {
	K  float64 // steepness
	X0 float64 // midpoint, in invocations
}

// Apply implements Transform.
func (s Sigmoid) Apply(x float64) float64 {
	return logistic(s.K * (x - s.X0))
}

// Name implements Transform.
func (s Sigmoid) Name() string { return "sigmoid" }

// Tanh is the rescaled hyperbolic tangent (tanh(K·(x - X0)) + 1) / 2.
// It is the logistic curve with twice the steepness.
type Tanh struct {
	K  float64
	X0 float64
}

// Apply implements Transform.
func (t Tanh) Apply(x float64) float64 {
	return logistic(2 * t.K * (x - t.X0))
}

// Name implements Transform.
func (t Tanh) Name() string { return "tanh" }

// Arctan is 0.5 + atan(K·(x - X0)) / π. It saturates much more slowly than
// the logistic family, which suits workloads with a long tail of call rates.
type Arctan struct {
	K  float64
	X0 float64
}

// Apply implements Transform.
func (a Arctan) Apply(x float64) float64 {
	z := clamp(a.K*(x-a.X0), maxArctanArg)
	return 0.5 + math.Atan(z)/math.Pi
}

// Name implements Transform.
func (a Arctan) Name() string { return "arctan" }

func logistic(z float64) float64 {
	z = clamp(z, maxExponent)
	return 1 / (1 + math.Exp(-z))
}

// clamp limits z to [-limit, limit]. NaN collapses to the midpoint.
func clamp(z, limit float64) float64 {
	switch {
	case math.IsNaN(z):
		return 0
	case z > limit:
		return limit
	case z < -limit:
		return -limit
	}
	return z
}

// Names lists the accepted transform names.
var Names = []string{"sigmoid", "tanh", "arctan"}

// New returns the transform registered under name. An empty name selects
// the sigmoid.
func New(name string, k, x0 float64) (Transform, error) {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("transform steepness must be a positive finite number, got %v", k)
	}
	if math.IsNaN(x0) || math.IsInf(x0, 0) {
		return nil, fmt.Errorf("transform midpoint must be finite, got %v", x0)
	}
	switch name {
	case "", "sigmoid":
		return Sigmoid{K: k, X0: x0}, nil
	case "tanh":
		return Tanh{K: k, X0: x0}, nil
	case "arctan":
		return Arctan{K: k, X0: x0}, nil
	}
	return nil, fmt.Errorf("unknown transform %q (valid: %v)", name, Names)
}

// ApplyAll transforms every count in xs.
func ApplyAll(t Transform, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = t.Apply(x)
	}
	return out
}
