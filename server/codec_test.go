package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/cachetune/tuner"
)

var twoPools = []string{"WritePool", "ReadPool"}

func TestParseRequest_ClientFormat(t *testing.T) {
	// GIVEN the request the cache client sends every round
	raw := "WritePool:176;ReadPool:176;WritePool:5.5;ReadPool:3;WritePool:1000;ReadPool:2000;"

	// WHEN it is parsed
	obs, err := ParseRequest(raw, twoPools)

	// THEN values land on the configured pools in order
	require.NoError(t, err)
	assert.Equal(t, tuner.Observation{
		{Size: 176, Throughput: 5.5, Invocations: 1000},
		{Size: 176, Throughput: 3, Invocations: 2000},
	}, obs)
}

func TestParseRequest_PoolOrderWithinGroupIsFree(t *testing.T) {
	raw := "ReadPool:100;WritePool:252;WritePool:1;ReadPool:2;ReadPool:20;WritePool:10\n"
	obs, err := ParseRequest(raw, twoPools)
	require.NoError(t, err)
	assert.Equal(t, []int{252, 100}, obs.Sizes())
	assert.Equal(t, []float64{1, 2}, obs.Throughputs())
	assert.Equal(t, []float64{10, 20}, obs.Invocations())
}

func TestParseRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"only separators", ";;;"},
		{"missing group", "WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"extra pair", "WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;"},
		{"unknown pool", "FlushPool:1;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"repeated pool", "ReadPool:1;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"missing colon", "WritePool1;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"two colons", "WritePool:1:2;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"fractional size", "WritePool:1.5;ReadPool:1;WritePool:1;ReadPool:1;WritePool:1;ReadPool:1;"},
		{"text throughput", "WritePool:1;ReadPool:1;WritePool:fast;ReadPool:1;WritePool:1;ReadPool:1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.raw, twoPools)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tuner.ErrMalformedRequest), "got %v", err)
		})
	}
}

func TestReportedSizes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  []int
		valid bool
	}{
		{"bad throughput", "ReadPool:30;WritePool:10;WritePool:fast;ReadPool:1;WritePool:1;ReadPool:1;", []int{10, 30}, true},
		{"truncated after sizes", "WritePool:20;ReadPool:20;WritePool:5", []int{20, 20}, true},
		{"bad size", "WritePool:abc;ReadPool:20;WritePool:5;ReadPool:5;WritePool:1;ReadPool:1;", nil, false},
		{"negative size", "WritePool:-1;ReadPool:41;WritePool:5;ReadPool:5;WritePool:1;ReadPool:1;", nil, false},
		{"repeated pool", "WritePool:1;WritePool:1;WritePool:5;ReadPool:5;WritePool:1;ReadPool:1;", nil, false},
		{"too short", "WritePool:20;", nil, false},
		{"empty", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReportedSizes(tt.raw, twoPools)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRequest_ParsesBack(t *testing.T) {
	obs := tuner.Observation{
		{Size: 96, Throughput: 0.25, Invocations: 13000},
		{Size: 256, Throughput: 4, Invocations: 0},
	}
	raw := EncodeRequest(twoPools, obs)
	assert.Equal(t, "WritePool:96;ReadPool:256;WritePool:0.25;ReadPool:4;WritePool:13000;ReadPool:0;", raw)
	got, err := ParseRequest(raw, twoPools)
	require.NoError(t, err)
	assert.Equal(t, obs, got)
}

func TestEncodeResponse(t *testing.T) {
	assert.Equal(t, "WritePool ReadPool\n176 176", EncodeResponse(twoPools, []int{176, 176}))
}

func TestParseResponse(t *testing.T) {
	pools, sizes, err := ParseResponse("WritePool ReadPool FlushPool\n96 128 128")
	require.NoError(t, err)
	assert.Equal(t, []string{"WritePool", "ReadPool", "FlushPool"}, pools)
	assert.Equal(t, []int{96, 128, 128}, sizes)

	_, _, err = ParseResponse("WritePool ReadPool")
	assert.Error(t, err)
	_, _, err = ParseResponse("WritePool ReadPool\n96")
	assert.Error(t, err)
	_, _, err = ParseResponse("WritePool\nlots")
	assert.Error(t, err)
}
