package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/cachetune/tuner"
	"github.com/inference-sim/cachetune/tuner/trace"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "replay", "summary", "probe", "arms"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, serveCmd.Flags().Lookup("metrics-listen"))
}

func TestPrintArms_MarksSweep(t *testing.T) {
	// GIVEN a five-arm space and a three-point sweep
	cfg := tuner.DefaultConfig()
	cfg.TotalUnits, cfg.Granularity, cfg.SampleTimes = 40, 10, 3

	// WHEN the space is printed
	var buf bytes.Buffer
	require.NoError(t, printArms(cfg, &buf))

	// THEN every arm is listed in order with the sweep arms marked
	assert.Equal(t, strings.Join([]string{
		"# 5 arms over [WritePool ReadPool], total 40, step 10",
		"0 [0, 40] sweep",
		"1 [10, 30]",
		"2 [20, 20] sweep",
		"3 [30, 10]",
		"4 [40, 0] sweep",
	}, "\n")+"\n", buf.String())
}

func TestSummarize_WritesYAML(t *testing.T) {
	log := strings.Join([]string{
		"start time : 2024-05-01 12:00:00",
		"run time : 0.00 s",
		"end time : 2024-05-01 12:00:00",
		"reward : 8.5 [176, 176]",
		"start time : 2024-05-01 12:00:01",
		"run time : 0.00 s",
		"end time : 2024-05-01 12:00:01",
		"reward : 10.5 [160, 192]",
	}, "\n") + "\n"

	var buf bytes.Buffer
	require.NoError(t, summarize(strings.NewReader(log), &buf))
	out := buf.String()
	assert.Contains(t, out, "rounds: 2\n")
	assert.Contains(t, out, "mean_reward: 9.5\n")
	assert.Contains(t, out, "best_arm: [160, 192]\n")
	assert.Contains(t, out, "arm_changes: 1\n")
}

func TestSummarize_ReadsReplayOutput(t *testing.T) {
	// GIVEN the round log written by a replay
	cfg := tuner.DefaultConfig()
	cfg.TotalUnits, cfg.Granularity, cfg.SampleTimes = 40, 10, 5
	rounds := []tuner.Observation{
		{{Size: 20, Throughput: 3}, {Size: 20, Throughput: 1}},
		{{Size: 0, Throughput: 0}, {Size: 40, Throughput: 0}},
		{{Size: 10, Throughput: 2}, {Size: 30, Throughput: 2}},
	}
	var log bytes.Buffer
	_, err := replay(cfg, rounds, &log)
	require.NoError(t, err)

	// WHEN it is parsed back
	points, err := trace.Parse(&log)
	require.NoError(t, err)

	// THEN only the two updated rounds are recovered
	require.Len(t, points, 2)
	assert.Equal(t, 4.0, points[0].Reward)
	assert.Equal(t, []int{0, 40}, points[0].Arm)
	assert.Equal(t, []int{10, 30}, points[1].Arm)
}
