package tuner

import (
	"fmt"
	"math"

	"github.com/inference-sim/cachetune/tuner/arms"
	"github.com/inference-sim/cachetune/tuner/feature"
)

// RewardMode selects how per-pool throughputs combine into the round reward.
type RewardMode string

const (
	// RewardSum adds raw throughputs.
	RewardSum RewardMode = "sum"
	// RewardWeighted scales each pool's throughput by its context value.
	RewardWeighted RewardMode = "weighted"
)

// TransformConfig selects and shapes the Context Transform.
type TransformConfig struct {
	Name string  `yaml:"name"` // "sigmoid" (default), "tanh", "arctan"
	K    float64 `yaml:"k"`    // steepness
	X0   float64 `yaml:"x0"`   // midpoint, in invocations
}

// Config is the immutable tuner configuration, loaded once at startup.
type Config struct {
	// TotalUnits is the cache budget every arm sums to.
	TotalUnits int `yaml:"total_units"`

	// Granularity is the size step of every pool. Must divide TotalUnits.
	Granularity int `yaml:"granularity"`

	// SampleTimes is the number of warm-up rounds served by the coverage sweep.
	SampleTimes int `yaml:"sample_times"`

	// ConvergenceThreshold is the number of consecutive rounds with an unchanged
	// best arm after which the tuner is considered approximately converged.
	ConvergenceThreshold int `yaml:"convergence_threshold"`

	// ExploitProbability is the percentage [0, 100] of CONVERGED rounds that
	// return the best-known arm directly.
	ExploitProbability int `yaml:"exploit_probability"`

	// LoadChangeThreshold is the number of rounds after a (re)start before
	// workload-change detection begins. Rewards need time to level off.
	LoadChangeThreshold int `yaml:"load_change_threshold"`

	// HistoryWindow is the length of each reward window compared by
	// workload-change detection.
	HistoryWindow int `yaml:"history_window"`

	// WorkloadChangeRatio is the relative change of the windowed mean reward
	// treated as a workload change. Default: 0.30.
	WorkloadChangeRatio float64 `yaml:"workload_change_ratio"`

	// Alpha is the initial exploration coefficient.
	Alpha float64 `yaml:"alpha"`
	// AlphaDecay multiplies Alpha every round. Range: (0, 1].
	AlphaDecay float64 `yaml:"alpha_decay"`
	// AlphaFloor keeps exploration from vanishing entirely.
	AlphaFloor float64 `yaml:"alpha_floor"`

	// Regularization is the ridge term added to every covariance diagonal.
	Regularization float64 `yaml:"regularization"`

	// Pools names the resource pools, in wire and arm order.
	Pools []string `yaml:"pools"`

	Transform TransformConfig `yaml:"transform"`
	Reward    RewardMode      `yaml:"reward"`

	// Seed drives the CONVERGED exploit-or-explore draw.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the production defaults for a two-pool (write/read)
// deployment over a 352-unit budget.
func DefaultConfig() Config {
	return Config{
		TotalUnits:           352,
		Granularity:          16,
		SampleTimes:          20,
		ConvergenceThreshold: 150,
		ExploitProbability:   80,
		LoadChangeThreshold:  50,
		HistoryWindow:        50,
		WorkloadChangeRatio:  0.30,
		Alpha:                0.95,
		AlphaDecay:           0.98,
		AlphaFloor:           0.01,
		Regularization:       1.0,
		Pools:                []string{"WritePool", "ReadPool"},
		Transform:            TransformConfig{Name: "sigmoid", K: 0.0003, X0: 13000},
		Reward:               RewardSum,
		Seed:                 42,
	}
}

// ValidateConfig returns an error wrapping ErrInvalidConfiguration if cfg
// cannot drive an engine.
func ValidateConfig(cfg Config) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}
	if len(cfg.Pools) == 0 {
		return bad("at least one pool is required")
	}
	seen := make(map[string]bool, len(cfg.Pools))
	for _, p := range cfg.Pools {
		if p == "" {
			return bad("pool names must be non-empty")
		}
		if seen[p] {
			return bad("duplicate pool name %q", p)
		}
		seen[p] = true
	}
	if cfg.TotalUnits <= 0 {
		return bad("total_units must be positive, got %d", cfg.TotalUnits)
	}
	if cfg.Granularity <= 0 {
		return bad("granularity must be positive, got %d", cfg.Granularity)
	}
	if cfg.TotalUnits%cfg.Granularity != 0 {
		return bad("granularity %d does not evenly divide total_units %d", cfg.Granularity, cfg.TotalUnits)
	}
	if cfg.SampleTimes < 1 {
		return bad("sample_times must be at least 1, got %d", cfg.SampleTimes)
	}
	if cfg.ConvergenceThreshold < 1 {
		return bad("convergence_threshold must be at least 1, got %d", cfg.ConvergenceThreshold)
	}
	if cfg.ExploitProbability < 0 || cfg.ExploitProbability > 100 {
		return bad("exploit_probability must be in [0, 100], got %d", cfg.ExploitProbability)
	}
	if cfg.LoadChangeThreshold < 0 {
		return bad("load_change_threshold must be non-negative, got %d", cfg.LoadChangeThreshold)
	}
	if cfg.HistoryWindow < 1 {
		return bad("history_window must be at least 1, got %d", cfg.HistoryWindow)
	}
	if !positiveFinite(cfg.WorkloadChangeRatio) {
		return bad("workload_change_ratio must be positive, got %v", cfg.WorkloadChangeRatio)
	}
	if !positiveFinite(cfg.Alpha) {
		return bad("alpha must be positive, got %v", cfg.Alpha)
	}
	if !positiveFinite(cfg.AlphaDecay) || cfg.AlphaDecay > 1 {
		return bad("alpha_decay must be in (0, 1], got %v", cfg.AlphaDecay)
	}
	if !positiveFinite(cfg.AlphaFloor) || cfg.AlphaFloor > cfg.Alpha {
		return bad("alpha_floor must be in (0, alpha], got %v", cfg.AlphaFloor)
	}
	if !positiveFinite(cfg.Regularization) {
		return bad("regularization must be positive, got %v", cfg.Regularization)
	}
	switch cfg.Reward {
	case RewardSum, RewardWeighted:
	default:
		return bad("unknown reward mode %q (valid: %s, %s)", cfg.Reward, RewardSum, RewardWeighted)
	}
	if _, err := feature.New(cfg.Transform.Name, cfg.Transform.K, cfg.Transform.X0); err != nil {
		return bad("%v", err)
	}
	if _, err := arms.NewSpace(cfg.TotalUnits, cfg.Granularity, len(cfg.Pools)); err != nil {
		return bad("%v", err)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
