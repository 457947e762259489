package tuner

import (
	"hash/fnv"
	"math/rand"
)

const (
	// SubsystemConvergence drives the exploit-or-explore draw in the CONVERGED phase.
	SubsystemConvergence = "convergence"
)

// PartitionedRNG provides deterministic, isolated RNG streams per subsystem.
//
// Derivation formula: seed XOR fnv1a64(subsystemName). Two engines built with
// the same seed draw identical sequences from each subsystem regardless of
// how often the other subsystems were used.
//
// Thread-safety: NOT thread-safe. The engine mutex serializes access.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same name always returns the same *rand.Rand instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the seed this PartitionedRNG was created with.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
