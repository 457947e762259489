package tuner

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachetune/tuner/arms"
	"github.com/inference-sim/cachetune/tuner/linucb"
)

// tieTolerance is the relative score difference below which two arms tie.
const tieTolerance = 1e-9

// Scheduler is the bandit state machine. It owns the arm space, the linear
// model and the run state. It is NOT safe for concurrent use; Engine
// serializes every Update/Select pair.
//
// Phases:
//   - SAMPLING: the first SampleTimes selections follow a fixed sweep across
//     the arm space so every region is observed before scores are trusted.
//   - EXPLOITING: selections maximize Σ_pools (θ·x + alpha·sqrt(xᵀA⁻¹x)).
//   - CONVERGED: entered once the best arm has not changed for
//     ConvergenceThreshold rounds; returns the best arm with probability
//     ExploitProbability/100, otherwise falls back to UCB.
//
// Any phase returns to SAMPLING when the windowed mean reward shifts by more
// than WorkloadChangeRatio. The model accumulators and the reward history
// survive that reset; the model acts as a prior for the re-warm-up.
type Scheduler struct {
	cfg   Config
	space *arms.Space
	model *linucb.Model
	rng   *rand.Rand
	hist  *history

	round            int // monotonic, non-degenerate rounds only
	roundsSinceReset int
	phase            Phase
	sampleIdx        int
	alpha            float64
	bestIdx          int // -1 when unknown
	bestReward       float64
	sinceImprovement int
	lastIdx          int // last selected arm, -1 before the first selection
	ctx              []float64
}

// NewScheduler builds a scheduler in the SAMPLING phase. cfg must already be
// valid; see ValidateConfig.
func NewScheduler(cfg Config, rng *PartitionedRNG) (*Scheduler, error) {
	space, err := arms.NewSpace(cfg.TotalUnits, cfg.Granularity, len(cfg.Pools))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	model, err := linucb.New(len(cfg.Pools), linucb.Dim, cfg.Regularization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return &Scheduler{
		cfg:     cfg,
		space:   space,
		model:   model,
		rng:     rng.ForSubsystem(SubsystemConvergence),
		hist:    newHistory(cfg.HistoryWindow),
		phase:   PhaseSampling,
		alpha:   cfg.Alpha,
		bestIdx: -1,
		lastIdx: -1,
	}, nil
}

// Space returns the arm space.
func (s *Scheduler) Space() *arms.Space { return s.space }

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase { return s.phase }

// Alpha returns the current exploration coefficient.
func (s *Scheduler) Alpha() float64 { return s.alpha }

// Round returns the number of rounds folded into the model.
func (s *Scheduler) Round() int { return s.round }

// BestArm returns the best-known arm and its reward. ok is false after a
// workload-change reset until the next round is observed.
func (s *Scheduler) BestArm() (arm arms.Arm, reward float64, ok bool) {
	if s.bestIdx < 0 {
		return nil, 0, false
	}
	return s.space.At(s.bestIdx).Clone(), s.bestReward, true
}

// LastArm returns the most recently selected arm, or nil.
func (s *Scheduler) LastArm() arms.Arm {
	if s.lastIdx < 0 {
		return nil
	}
	return s.space.At(s.lastIdx).Clone()
}

// Update folds one non-degenerate round into the model and run state and
// returns the round reward. sizes are the sizes the client actually ran with;
// ctx are the transformed invocation features.
func (s *Scheduler) Update(sizes []int, throughputs, ctx []float64) float64 {
	parts, reward := contributions(s.cfg.Reward, throughputs, ctx)
	s.ctx = append(s.ctx[:0], ctx...)

	total := float64(s.space.Total())
	for p := range sizes {
		share := math.Min(1, math.Max(0, float64(sizes[p])/total))
		s.model.Update(p, linucb.Features(share, ctx[p]), parts[p])
	}
	s.round++
	s.roundsSinceReset++

	s.trackBest(s.space.Nearest(sizes), reward)
	s.hist.push(reward)
	s.alpha = math.Max(s.alpha*s.cfg.AlphaDecay, s.cfg.AlphaFloor)

	if s.workloadChanged() {
		s.restart()
	}
	return reward
}

// trackBest keeps the best observed (arm, reward) and counts rounds in which
// the best arm's identity did not change.
func (s *Scheduler) trackBest(idx int, reward float64) {
	if s.bestIdx >= 0 && reward <= s.bestReward {
		s.sinceImprovement++
		return
	}
	changed := s.bestIdx != idx
	s.bestIdx, s.bestReward = idx, reward
	if !changed {
		s.sinceImprovement++
		return
	}
	s.sinceImprovement = 0
	if s.phase == PhaseConverged {
		logrus.Debugf("round %d: new best arm %v, leaving %s", s.round, s.space.At(idx), s.phase)
		s.phase = PhaseExploiting
	}
}

// workloadChanged compares the newest reward window with the one before it.
// Detection waits until both windows hold rewards observed after the warm-up
// sweep that followed the last (re)start. Sweep rewards reflect the forced
// arms rather than the workload, and pre-reset rewards belong to the regime
// that triggered the reset.
func (s *Scheduler) workloadChanged() bool {
	if s.roundsSinceReset <= s.cfg.LoadChangeThreshold ||
		s.roundsSinceReset < s.cfg.SampleTimes+2*s.cfg.HistoryWindow {
		return false
	}
	recent, prior, hasPrior, _ := s.hist.means()
	if !hasPrior || prior <= 0 {
		return false
	}
	change := math.Abs(recent-prior) / prior
	if change <= s.cfg.WorkloadChangeRatio {
		return false
	}
	logrus.Infof("round %d: workload change detected (window mean %.4g vs %.4g, %.1f%% > %.1f%%), re-sampling",
		s.round, recent, prior, 100*change, 100*s.cfg.WorkloadChangeRatio)
	return true
}

// restart resets the run-state control variables and re-enters SAMPLING.
// The model accumulators and the reward history are kept.
func (s *Scheduler) restart() {
	s.sinceImprovement = 0
	s.bestIdx, s.bestReward = -1, 0
	s.alpha = s.cfg.Alpha
	s.phase = PhaseSampling
	s.sampleIdx = 0
	s.roundsSinceReset = 0
}

// Select advances the phase and returns the arm to apply next.
func (s *Scheduler) Select() arms.Arm {
	s.advance()

	var idx int
	switch s.phase {
	case PhaseSampling:
		idx = s.space.SweepIndex(s.sampleIdx, s.cfg.SampleTimes)
		s.sampleIdx++
	case PhaseConverged:
		if s.bestIdx >= 0 && s.rng.Intn(100) < s.cfg.ExploitProbability {
			idx = s.bestIdx
		} else {
			idx = s.argmaxUCB()
		}
	default:
		idx = s.argmaxUCB()
	}
	s.lastIdx = idx
	return s.space.At(idx).Clone()
}

func (s *Scheduler) advance() {
	if s.phase == PhaseSampling && s.sampleIdx >= s.cfg.SampleTimes {
		logrus.Infof("round %d: warm-up sweep complete, %s -> %s", s.round, PhaseSampling, PhaseExploiting)
		s.phase = PhaseExploiting
	}
	if s.phase == PhaseExploiting && s.bestIdx >= 0 && s.sinceImprovement >= s.cfg.ConvergenceThreshold {
		logrus.Infof("round %d: best arm %v unchanged for %d rounds, %s -> %s",
			s.round, s.space.At(s.bestIdx), s.sinceImprovement, PhaseExploiting, PhaseConverged)
		s.phase = PhaseConverged
	}
}

// argmaxUCB scores every arm and returns the winner's index. Ties go to the
// arm closest to the previous selection, then to the smallest index.
func (s *Scheduler) argmaxUCB() int {
	table := s.poolScores()
	g := s.space.Granularity()

	best, bestScore := 0, math.Inf(-1)
	for i := 0; i < s.space.Len(); i++ {
		arm := s.space.At(i)
		score := 0.0
		for p, size := range arm {
			score += table[p][size/g]
		}
		if i == 0 {
			bestScore = score
			continue
		}
		tol := tieTolerance * math.Max(1, math.Abs(bestScore))
		switch {
		case score > bestScore+tol:
			best, bestScore = i, score
		case math.Abs(score-bestScore) <= tol && s.lastIdx >= 0:
			last := s.space.At(s.lastIdx)
			if arm.Distance(last) < s.space.At(best).Distance(last) {
				best, bestScore = i, score
			}
		}
	}
	return best
}

// poolScores precomputes estimate + bonus for every pool at every size level.
func (s *Scheduler) poolScores() [][]float64 {
	levels := s.space.Total()/s.space.Granularity() + 1
	table := make([][]float64, len(s.cfg.Pools))
	for p := range table {
		c := 0.5
		if p < len(s.ctx) {
			c = s.ctx[p]
		}
		table[p] = make([]float64, levels)
		for k := 0; k < levels; k++ {
			share := float64(k) / float64(levels-1)
			if levels == 1 {
				share = 0
			}
			mean, width := s.model.Estimate(p, linucb.Features(share, c))
			table[p][k] = mean + s.alpha*width
		}
	}
	return table
}

// Snapshot is a copy of the scheduler's run state and model state.
type Snapshot struct {
	Round                  int
	RoundsSinceReset       int
	Phase                  Phase
	SampleIndex            int
	Alpha                  float64
	BestArm                arms.Arm
	BestReward             float64
	RoundsSinceImprovement int
	LastArm                arms.Arm
	History                []float64
	Context                []float64
	Model                  []linucb.UnitSnapshot
}

// Snapshot copies the full scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	best, reward, _ := s.BestArm()
	return Snapshot{
		Round:                  s.round,
		RoundsSinceReset:       s.roundsSinceReset,
		Phase:                  s.phase,
		SampleIndex:            s.sampleIdx,
		Alpha:                  s.alpha,
		BestArm:                best,
		BestReward:             reward,
		RoundsSinceImprovement: s.sinceImprovement,
		LastArm:                s.LastArm(),
		History:                s.hist.values(),
		Context:                append([]float64(nil), s.ctx...),
		Model:                  s.model.Snapshot(),
	}
}
