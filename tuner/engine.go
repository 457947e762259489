package tuner

import (
	"fmt"
	"sync"
	"time"

	"github.com/inference-sim/cachetune/tuner/arms"
	"github.com/inference-sim/cachetune/tuner/feature"
)

// RoundObserver is notified after every accepted round (updated or no-op).
// Observers are called in round order, one round at a time, but outside the
// state lock. An observer may read the engine (Snapshot, Current) but must
// not call Round.
type RoundObserver func(d Decision, pools []Pool)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a round observer.
func WithObserver(o RoundObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the single serialization point in front of the Scheduler. Every
// round (validate, transform, update, select) runs under one mutex, so rounds
// from concurrently connected clients queue instead of racing.
type Engine struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex // held while observers run; taken before mu is released
	cfg       Config
	transform feature.Transform
	sched     *Scheduler
	pools     []Pool

	observers []RoundObserver
	now       func() time.Time
}

// NewEngine validates cfg and builds an engine. Configuration errors wrap
// ErrInvalidConfiguration and must be treated as fatal.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.Pools = append([]string(nil), cfg.Pools...)
	tr, err := feature.New(cfg.Transform.Name, cfg.Transform.K, cfg.Transform.X0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	sched, err := NewScheduler(cfg, NewPartitionedRNG(cfg.Seed))
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		transform: tr,
		sched:     sched,
		pools:     make([]Pool, len(cfg.Pools)),
		now:       time.Now,
	}
	for i, name := range cfg.Pools {
		e.pools[i].Name = name
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.Pools = append([]string(nil), e.cfg.Pools...)
	return cfg
}

// Space returns the immutable arm space.
func (e *Engine) Space() *arms.Space { return e.sched.Space() }

// Round runs one observe, reward, update, select cycle.
//
// A malformed observation returns ErrMalformedRequest and changes nothing.
// A round with all-zero throughput is a no-op: run state and model state are
// untouched and the previously selected arm (or, before any selection, the
// reported sizes) is returned with Outcome OutcomeNoOp.
func (e *Engine) Round(obs Observation) (Decision, error) {
	if err := obs.validate(len(e.cfg.Pools)); err != nil {
		return Decision{}, err
	}
	ctx := feature.ApplyAll(e.transform, obs.Invocations())
	throughputs := obs.Throughputs()

	e.mu.Lock()
	d := Decision{Start: e.now()}
	for i, p := range obs {
		e.pools[i].Size = p.Size
		e.pools[i].Throughput = p.Throughput
		e.pools[i].Invocations = p.Invocations
		e.pools[i].Context = ctx[i]
	}
	if degenerate(throughputs) {
		d.Outcome = OutcomeNoOp
		d.Arm = e.sched.LastArm()
		if d.Arm == nil {
			d.Arm = arms.Arm(obs.Sizes())
		}
	} else {
		d.Reward = e.sched.Update(obs.Sizes(), throughputs, ctx)
		d.Arm = e.sched.Select()
	}
	d.Round = e.sched.Round()
	d.Phase = e.sched.Phase()
	d.Alpha = e.sched.Alpha()
	d.End = e.now()
	pools := append([]Pool(nil), e.pools...)

	// Hand over from mu to notifyMu so the next round cannot reach its
	// observers before this one has.
	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()
	for _, o := range e.observers {
		o(d, pools)
	}
	return d, nil
}

// Current returns the most recently selected arm. ok is false before the
// first non-degenerate round.
func (e *Engine) Current() (arms.Arm, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.sched.LastArm()
	return a, a != nil
}

// Pools returns a copy of the latest per-pool view.
func (e *Engine) Pools() []Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Pool(nil), e.pools...)
}

// Snapshot returns a copy of the scheduler state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Snapshot()
}
