// Package arms enumerates the discrete decision space of the tuner: every way
// of splitting a fixed budget of cache units across the configured pools in
// steps of a fixed granularity.
package arms

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidSpace is returned when the arm space cannot be built from the
// given budget, granularity and pool count.
var ErrInvalidSpace = errors.New("invalid arm space")

// maxArms bounds the enumeration so a careless configuration cannot exhaust memory.
const maxArms = 1 << 20

// Arm is one partition of the budget: Arm[i] is the size of pool i.
// Arms are values; callers must not mutate an Arm obtained from a Space.
type Arm []int

// Equal reports whether a and o assign the same size to every pool.
func (a Arm) Equal(o Arm) bool {
	if len(a) != len(o) {
		return false
	}
	for i := range a {
		if a[i] != o[i] {
			return false
		}
	}
	return true
}

// Distance is the L1 distance between two size vectors of equal length.
func (a Arm) Distance(o []int) int {
	d := 0
	for i := range a {
		v := a[i] - o[i]
		if v < 0 {
			v = -v
		}
		d += v
	}
	return d
}

// Clone returns a copy that is safe to hand out.
func (a Arm) Clone() Arm {
	if a == nil {
		return nil
	}
	return append(Arm(nil), a...)
}

// String renders the arm as "[a, b, ...]", the form the round log uses.
func (a Arm) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Space is the immutable, ordered set of valid arms.
//
// Enumeration order is lexicographic ascending: the first pool's size
// varies slowest. For two pools with total 40 and granularity 10 that is
// (0,40), (10,30), (20,20), (30,10), (40,0).
type Space struct {
	total       int
	granularity int
	arms        []Arm
}

// NewSpace enumerates every assignment of sizes to pools such that each size
// is a non-negative multiple of granularity and the sizes sum to total.
func NewSpace(total, granularity, pools int) (*Space, error) {
	switch {
	case granularity <= 0:
		return nil, fmt.Errorf("%w: granularity must be positive, got %d", ErrInvalidSpace, granularity)
	case total < 0:
		return nil, fmt.Errorf("%w: total must be non-negative, got %d", ErrInvalidSpace, total)
	case pools < 1:
		return nil, fmt.Errorf("%w: need at least one pool, got %d", ErrInvalidSpace, pools)
	case total%granularity != 0:
		return nil, fmt.Errorf("%w: granularity %d does not divide total %d", ErrInvalidSpace, granularity, total)
	}
	units := total / granularity
	if n := Count(units, pools); n > maxArms || n <= 0 {
		return nil, fmt.Errorf("%w: %d units over %d pools yields too many arms", ErrInvalidSpace, units, pools)
	}

	s := &Space{total: total, granularity: granularity}
	cur := make([]int, pools)
	var fill func(pool, remaining int)
	fill = func(pool, remaining int) {
		if pool == pools-1 {
			cur[pool] = remaining * granularity
			s.arms = append(s.arms, append(Arm(nil), cur...))
			return
		}
		for u := 0; u <= remaining; u++ {
			cur[pool] = u * granularity
			fill(pool+1, remaining-u)
		}
	}
	fill(0, units)
	return s, nil
}

// Count is the stars-and-bars cardinality C(units+pools-1, pools-1).
// It returns -1 on overflow.
func Count(units, pools int) int {
	if pools < 1 || units < 0 {
		return 0
	}
	n, k := units+pools-1, pools-1
	if k > n-k {
		k = n - k
	}
	c := 1.0
	for i := 1; i <= k; i++ {
		c = c * float64(n-k+i) / float64(i)
		if c > math.MaxInt32 {
			return -1
		}
	}
	return int(math.Round(c))
}

// Len is the number of arms.
func (s *Space) Len() int { return len(s.arms) }

// Pools is the arm dimensionality.
func (s *Space) Pools() int { return len(s.arms[0]) }

// Total is the budget every arm sums to.
func (s *Space) Total() int { return s.total }

// Granularity is the size step.
func (s *Space) Granularity() int { return s.granularity }

// At returns the i-th arm in enumeration order.
func (s *Space) At(i int) Arm { return s.arms[i] }

// All returns a copy of the arm list in enumeration order.
func (s *Space) All() []Arm {
	out := make([]Arm, len(s.arms))
	for i, a := range s.arms {
		out[i] = a.Clone()
	}
	return out
}

// Index returns the enumeration index of arm, or -1 if it is not in the space.
func (s *Space) Index(arm []int) int {
	if len(arm) != s.Pools() {
		return -1
	}
	for i, a := range s.arms {
		if a.Equal(arm) {
			return i
		}
	}
	return -1
}

// SweepIndex returns the index of the i-th of n evenly spaced points across
// the enumeration order. With n == 1 the middle arm is used. i is taken
// modulo n.
func (s *Space) SweepIndex(i, n int) int {
	last := len(s.arms) - 1
	if n <= 1 || last == 0 {
		return last / 2
	}
	i %= n
	if i < 0 {
		i += n
	}
	return int(math.Round(float64(i) * float64(last) / float64(n-1)))
}

// Sweep returns the arm at SweepIndex(i, n).
func (s *Space) Sweep(i, n int) Arm {
	return s.arms[s.SweepIndex(i, n)]
}

// Nearest returns the index of the arm closest in L1 distance to sizes.
// Ties resolve to the smallest index. sizes need not lie on the grid.
func (s *Space) Nearest(sizes []int) int {
	best, bestDist := 0, math.MaxInt
	for i, a := range s.arms {
		if d := a.Distance(sizes); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
