package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/cachetune/tuner"
)

var twoPools = []string{"WritePool", "ReadPool"}

func TestReadRounds_ColumnsByName(t *testing.T) {
	csv := strings.Join([]string{
		"round, throughput_ReadPool, size_WritePool, size_ReadPool, throughput_WritePool, invocations_WritePool, invocations_ReadPool",
		"1, 2.5, 176, 176, 5, 1000, 2000",
		"2, 0, 160, 192, 0, 0, 0",
	}, "\n")

	rounds, err := readRounds(strings.NewReader(csv), twoPools)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, tuner.Observation{
		{Size: 176, Throughput: 5, Invocations: 1000},
		{Size: 176, Throughput: 2.5, Invocations: 2000},
	}, rounds[0])
	assert.Equal(t, []int{160, 192}, rounds[1].Sizes())
}

func TestReadRounds_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing pool columns", "size_WritePool,throughput_WritePool,invocations_WritePool\n1,1,1\n"},
		{"bad size", "size_WritePool,size_ReadPool,throughput_WritePool,throughput_ReadPool,invocations_WritePool,invocations_ReadPool\nx,1,1,1,1,1\n"},
		{"bad throughput", "size_WritePool,size_ReadPool,throughput_WritePool,throughput_ReadPool,invocations_WritePool,invocations_ReadPool\n1,1,1,y,1,1\n"},
		{"ragged row", "size_WritePool,size_ReadPool,throughput_WritePool,throughput_ReadPool,invocations_WritePool,invocations_ReadPool\n1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRounds(strings.NewReader(tt.csv), twoPools)
			assert.Error(t, err)
		})
	}
}

func TestReplay_SkipsRejectedRowsAndRecordsNoOps(t *testing.T) {
	// GIVEN rounds including a no-op and an invalid row
	cfg := tuner.DefaultConfig()
	cfg.TotalUnits, cfg.Granularity, cfg.SampleTimes = 40, 10, 5
	rounds := []tuner.Observation{
		{{Size: 20, Throughput: 5}, {Size: 20, Throughput: 5}},
		{{Size: 0, Throughput: 0}, {Size: 40, Throughput: 0}},
		{{Size: -1, Throughput: 1}, {Size: 41, Throughput: 1}},
		{{Size: 0, Throughput: 1}, {Size: 40, Throughput: 1}},
	}

	// WHEN they are replayed
	var out bytes.Buffer
	tr, err := replay(cfg, rounds, &out)
	require.NoError(t, err)

	// THEN three rounds were recorded, one of them a no-op
	recs := tr.Rounds()
	require.Len(t, recs, 3)
	assert.Equal(t, "noop", recs[1].Outcome)
	assert.Len(t, tr.Points(), 2)
	assert.Equal(t, 1, strings.Count(out.String(), "noop : [0, 40]"))
	assert.Equal(t, 2, strings.Count(out.String(), "reward : "))
}

func TestReplay_InvalidConfiguration(t *testing.T) {
	cfg := tuner.DefaultConfig()
	cfg.Granularity = 10
	_, err := replay(cfg, nil, &bytes.Buffer{})
	assert.Error(t, err)
}
