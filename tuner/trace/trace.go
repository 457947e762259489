package trace

import "sync"

// Trace collects round records in memory, e.g. during an offline replay.
// It is safe for concurrent use.
type Trace struct {
	mu     sync.Mutex
	rounds []RoundRecord
}

// NewTrace creates a Trace ready for recording.
func NewTrace() *Trace {
	return &Trace{rounds: make([]RoundRecord, 0)}
}

// Record appends a round record.
func (t *Trace) Record(rec RoundRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.Arm = append([]int(nil), rec.Arm...)
	t.rounds = append(t.rounds, rec)
}

// Rounds returns a copy of the recorded rounds.
func (t *Trace) Rounds() []RoundRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RoundRecord, len(t.rounds))
	copy(out, t.rounds)
	return out
}

// Points returns the reward points of all updated rounds, in record order.
// This is what Parse recovers from a round log.
func (t *Trace) Points() []RewardPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RewardPoint, 0, len(t.rounds))
	for _, r := range t.rounds {
		if r.Outcome == OutcomeNoOp {
			continue
		}
		out = append(out, RewardPoint{Reward: r.Reward, Arm: append([]int(nil), r.Arm...)})
	}
	return out
}
