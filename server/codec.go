package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inference-sim/cachetune/tuner"
)

// groups is the number of name:value groups in a request: sizes,
// throughputs, invocation counts.
const groups = 3

// ParseRequest decodes "Name:size;...;Name:throughput;...;Name:invocations;...;"
// into an observation ordered like pools. Each group must name every pool
// exactly once, in any order. The trailing separator is optional.
func ParseRequest(raw string, pools []string) (tuner.Observation, error) {
	pairs, err := splitPairs(raw)
	if err != nil {
		return nil, err
	}
	p := len(pools)
	if len(pairs) != groups*p {
		return nil, fmt.Errorf("%w: got %d pairs, want %d", tuner.ErrMalformedRequest, len(pairs), groups*p)
	}

	index := poolIndex(pools)
	obs := make(tuner.Observation, p)
	for g := 0; g < groups; g++ {
		vals, err := parseGroup(pairs[g*p:(g+1)*p], index, g == 0)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			switch g {
			case 0:
				obs[i].Size = int(v)
			case 1:
				obs[i].Throughput = v
			default:
				obs[i].Invocations = v
			}
		}
	}
	return obs, nil
}

// ReportedSizes extracts the size group from a request that may be malformed
// elsewhere. ok is false unless the first group names every pool once with a
// non-negative integer size.
func ReportedSizes(raw string, pools []string) ([]int, bool) {
	pairs, err := splitPairs(raw)
	if err != nil || len(pairs) < len(pools) {
		return nil, false
	}
	vals, err := parseGroup(pairs[:len(pools)], poolIndex(pools), true)
	if err != nil {
		return nil, false
	}
	sizes := make([]int, len(vals))
	for i, v := range vals {
		if v < 0 {
			return nil, false
		}
		sizes[i] = int(v)
	}
	return sizes, true
}

func splitPairs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ";")
	if raw == "" {
		return nil, fmt.Errorf("%w: empty request", tuner.ErrMalformedRequest)
	}
	return strings.Split(raw, ";"), nil
}

func poolIndex(pools []string) map[string]int {
	index := make(map[string]int, len(pools))
	for i, name := range pools {
		index[name] = i
	}
	return index
}

// parseGroup decodes one group of name:value pairs into values ordered by
// index. Sizes must be integers.
func parseGroup(pairs []string, index map[string]int, sizes bool) ([]float64, error) {
	vals := make([]float64, len(index))
	seen := make([]bool, len(index))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || strings.Contains(value, ":") {
			return nil, fmt.Errorf("%w: bad pair %q", tuner.ErrMalformedRequest, pair)
		}
		i, known := index[name]
		if !known {
			return nil, fmt.Errorf("%w: unknown pool %q", tuner.ErrMalformedRequest, name)
		}
		if seen[i] {
			return nil, fmt.Errorf("%w: pool %q repeated", tuner.ErrMalformedRequest, name)
		}
		seen[i] = true

		if sizes {
			size, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: size of %s: %v", tuner.ErrMalformedRequest, name, err)
			}
			vals[i] = float64(size)
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value of %s: %v", tuner.ErrMalformedRequest, name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// EncodeRequest is the client side of ParseRequest.
func EncodeRequest(pools []string, obs tuner.Observation) string {
	var b strings.Builder
	for i, o := range obs {
		fmt.Fprintf(&b, "%s:%d;", pools[i], o.Size)
	}
	for i, o := range obs {
		fmt.Fprintf(&b, "%s:%s;", pools[i], strconv.FormatFloat(o.Throughput, 'f', -1, 64))
	}
	for i, o := range obs {
		fmt.Fprintf(&b, "%s:%s;", pools[i], strconv.FormatFloat(o.Invocations, 'f', -1, 64))
	}
	return b.String()
}

// EncodeResponse renders pool names on the first line and sizes on the
// second, both space separated.
func EncodeResponse(pools []string, sizes []int) string {
	vals := make([]string, len(sizes))
	for i, v := range sizes {
		vals[i] = strconv.Itoa(v)
	}
	return strings.Join(pools, " ") + "\n" + strings.Join(vals, " ")
}

// ParseResponse decodes a reply produced by EncodeResponse.
func ParseResponse(raw string) (pools []string, sizes []int, err error) {
	names, values, ok := strings.Cut(strings.TrimSpace(raw), "\n")
	if !ok {
		return nil, nil, fmt.Errorf("response %q: want two lines", raw)
	}
	pools = strings.Fields(names)
	fields := strings.Fields(values)
	if len(pools) != len(fields) {
		return nil, nil, fmt.Errorf("response %q: %d names but %d sizes", raw, len(pools), len(fields))
	}
	sizes = make([]int, len(fields))
	for i, f := range fields {
		if sizes[i], err = strconv.Atoi(f); err != nil {
			return nil, nil, fmt.Errorf("response %q: %w", raw, err)
		}
	}
	return pools, sizes, nil
}
