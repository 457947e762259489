package tuner

// Phase is the scheduler state machine tag.
type Phase int

const (
	// PhaseSampling serves the fixed coverage sweep, ignoring model scores.
	PhaseSampling Phase = iota
	// PhaseExploiting selects by UCB score.
	PhaseExploiting
	// PhaseConverged mostly returns the best-known arm, with light UCB exploration.
	PhaseConverged
)

func (p Phase) String() string {
	switch p {
	case PhaseSampling:
		return "SAMPLING"
	case PhaseExploiting:
		return "EXPLOITING"
	case PhaseConverged:
		return "CONVERGED"
	}
	return "UNKNOWN"
}

// Outcome classifies how a round was handled.
type Outcome int

const (
	// OutcomeUpdated: the model was updated and a new arm selected.
	OutcomeUpdated Outcome = iota
	// OutcomeNoOp: all throughputs were zero; nothing changed.
	OutcomeNoOp
)

func (o Outcome) String() string {
	if o == OutcomeNoOp {
		return "noop"
	}
	return "updated"
}

// MarshalText renders the phase name in JSON and YAML output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
