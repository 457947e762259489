package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/cachetune/tuner"
)

// Profile is a workload preset in defaults.yaml. Workloads differ in how
// many invocations a pool sees at its busiest, so each carries its own
// context transform.
type Profile struct {
	Description string                `yaml:"description"`
	Transform   tuner.TransformConfig `yaml:"transform"`
}

// Defaults represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Defaults struct {
	Version  string             `yaml:"version"`
	Tuner    tuner.Config       `yaml:"tuner"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// loadDefaults parses a defaults file over tuner.DefaultConfig, so keys
// missing from the tuner section keep their built-in values.
func loadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("reading defaults file: %w", err)
	}
	d := Defaults{Tuner: tuner.DefaultConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // typos must cause errors
	if err := decoder.Decode(&d); err != nil {
		return Defaults{}, fmt.Errorf("parsing defaults YAML %s: %w", path, err)
	}
	return d, nil
}

// addTunerFlags registers the configuration source and the tuner overrides.
// Override defaults only document the built-in values; an override applies
// only when the user sets the flag.
func addTunerFlags(fs *pflag.FlagSet) {
	def := tuner.DefaultConfig()
	fs.String("config", "defaults.yaml", "Defaults file (tuner section and workload profiles)")
	fs.String("profile", "s3fs", "Workload profile from the defaults file")
	fs.Int64("seed", def.Seed, "Seed for the converged-phase exploration draw")
	fs.Int("total-units", def.TotalUnits, "Cache budget shared by the pools")
	fs.Int("granularity", def.Granularity, "Pool size step; must divide total-units")
	fs.StringSlice("pools", def.Pools, "Pool names, in wire and arm order")
	fs.Int("sample-times", def.SampleTimes, "Warm-up sweep rounds")
	fs.Int("exploit-probability", def.ExploitProbability, "Percent of converged rounds that replay the best arm")
	fs.Float64("alpha", def.Alpha, "Initial exploration coefficient")
	fs.String("reward", string(def.Reward), "Reward mode (sum, weighted)")
}

// loadConfig resolves the tuner configuration: built-in defaults, then the
// defaults file and profile, then explicitly set flags. The result is validated.
func loadConfig(fs *pflag.FlagSet) (tuner.Config, error) {
	path, _ := fs.GetString("config")
	profile, _ := fs.GetString("profile")

	cfg := tuner.DefaultConfig()
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil || fs.Changed("config"):
		d, err := loadDefaults(path)
		if err != nil {
			return tuner.Config{}, err
		}
		cfg = d.Tuner
		if profile != "" {
			p, ok := d.Profiles[profile]
			if !ok {
				return tuner.Config{}, fmt.Errorf("%w: unknown profile %q in %s", tuner.ErrInvalidConfiguration, profile, path)
			}
			cfg.Transform = p.Transform
			logrus.Debugf("Using profile %s: %s", profile, p.Description)
		}
	case fs.Changed("profile"):
		return tuner.Config{}, fmt.Errorf("%w: profile %q requested but %s not found", tuner.ErrInvalidConfiguration, profile, path)
	default:
		logrus.Infof("%s not found, using built-in defaults", path)
	}

	applyOverrides(fs, &cfg)
	if err := tuner.ValidateConfig(cfg); err != nil {
		return tuner.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(fs *pflag.FlagSet, cfg *tuner.Config) {
	if fs.Changed("seed") {
		cfg.Seed, _ = fs.GetInt64("seed")
	}
	if fs.Changed("total-units") {
		cfg.TotalUnits, _ = fs.GetInt("total-units")
	}
	if fs.Changed("granularity") {
		cfg.Granularity, _ = fs.GetInt("granularity")
	}
	if fs.Changed("pools") {
		cfg.Pools, _ = fs.GetStringSlice("pools")
	}
	if fs.Changed("sample-times") {
		cfg.SampleTimes, _ = fs.GetInt("sample-times")
	}
	if fs.Changed("exploit-probability") {
		cfg.ExploitProbability, _ = fs.GetInt("exploit-probability")
	}
	if fs.Changed("alpha") {
		cfg.Alpha, _ = fs.GetFloat64("alpha")
	}
	if fs.Changed("reward") {
		r, _ := fs.GetString("reward")
		cfg.Reward = tuner.RewardMode(r)
	}
}
