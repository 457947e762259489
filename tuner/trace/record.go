// Package trace provides per-round decision records and the stable text log
// format that offline analysis reads back.
// This package has no dependencies on tuner/; it stores pure data types.
package trace

import "time"

// Outcome strings carried by RoundRecord.Outcome.
const (
	OutcomeUpdated = "updated"
	OutcomeNoOp    = "noop"
)

// RoundRecord captures one engine round.
type RoundRecord struct {
	Round   int
	Start   time.Time
	End     time.Time
	Reward  float64
	Arm     []int  // sizes sent back to the client, in pool order
	Phase   string // SAMPLING, EXPLOITING or CONVERGED
	Outcome string // OutcomeUpdated or OutcomeNoOp
	Alpha   float64
}

// Elapsed is the engine processing time of the round.
func (r RoundRecord) Elapsed() time.Duration {
	return r.End.Sub(r.Start)
}
