package tuner

import (
	"fmt"
	"math"
	"time"

	"github.com/inference-sim/cachetune/tuner/arms"
	"github.com/inference-sim/cachetune/tuner/trace"
)

// Pool is the engine's view of one resource pool, refreshed every round.
type Pool struct {
	Name        string
	Size        int     // units currently assigned, as reported
	Throughput  float64 // last observed throughput
	Invocations float64 // last observed invocation count
	Context     float64 // Invocations after the Context Transform
}

// PoolObservation is one pool's report for a round.
type PoolObservation struct {
	Size        int
	Throughput  float64
	Invocations float64
}

// Observation is a full round request: one entry per configured pool, in
// configuration order.
type Observation []PoolObservation

// Sizes returns the reported size vector.
func (o Observation) Sizes() []int {
	out := make([]int, len(o))
	for i, p := range o {
		out[i] = p.Size
	}
	return out
}

// Throughputs returns the reported throughput vector.
func (o Observation) Throughputs() []float64 {
	out := make([]float64, len(o))
	for i, p := range o {
		out[i] = p.Throughput
	}
	return out
}

// Invocations returns the reported invocation counts.
func (o Observation) Invocations() []float64 {
	out := make([]float64, len(o))
	for i, p := range o {
		out[i] = p.Invocations
	}
	return out
}

// validate checks shape and value ranges against a pool count.
func (o Observation) validate(pools int) error {
	if len(o) != pools {
		return fmt.Errorf("%w: expected %d pools, got %d", ErrMalformedRequest, pools, len(o))
	}
	for i, p := range o {
		if p.Size < 0 {
			return fmt.Errorf("%w: pool %d has negative size %d", ErrMalformedRequest, i, p.Size)
		}
		if !nonNegativeFinite(p.Throughput) {
			return fmt.Errorf("%w: pool %d has invalid throughput %v", ErrMalformedRequest, i, p.Throughput)
		}
		if !nonNegativeFinite(p.Invocations) {
			return fmt.Errorf("%w: pool %d has invalid invocation count %v", ErrMalformedRequest, i, p.Invocations)
		}
	}
	return nil
}

func nonNegativeFinite(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Decision is the engine's answer for one round.
type Decision struct {
	Round   int      // round counter after this round; unchanged by no-op rounds
	Arm     arms.Arm // sizes to apply, in pool order
	Reward  float64  // reward computed for the reported round (0 for no-op)
	Phase   Phase    // phase that produced Arm
	Alpha   float64  // exploration coefficient after this round
	Outcome Outcome
	Start   time.Time
	End     time.Time
}

// Elapsed is the engine processing time for the round.
func (d Decision) Elapsed() time.Duration {
	return d.End.Sub(d.Start)
}

// Record converts the decision into a round log record.
func (d Decision) Record() trace.RoundRecord {
	outcome := trace.OutcomeUpdated
	if d.Outcome == OutcomeNoOp {
		outcome = trace.OutcomeNoOp
	}
	return trace.RoundRecord{
		Round:   d.Round,
		Start:   d.Start,
		End:     d.End,
		Reward:  d.Reward,
		Arm:     append([]int(nil), d.Arm...),
		Phase:   d.Phase.String(),
		Outcome: outcome,
		Alpha:   d.Alpha,
	}
}
