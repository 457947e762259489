package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachetune/tuner"
	"github.com/inference-sim/cachetune/tuner/trace"
)

var roundsPath string // CSV of recorded rounds

// readRounds loads recorded rounds from a CSV whose header names
// size_<pool>, throughput_<pool> and invocations_<pool> for every pool.
// Other columns are ignored.
func readRounds(r io.Reader, pools []string) ([]tuner.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	type columns struct{ size, tput, inv int }
	idx := make([]columns, len(pools))
	for i, p := range pools {
		var ok [3]bool
		idx[i].size, ok[0] = col["size_"+p]
		idx[i].tput, ok[1] = col["throughput_"+p]
		idx[i].inv, ok[2] = col["invocations_"+p]
		if !ok[0] || !ok[1] || !ok[2] {
			return nil, fmt.Errorf("CSV header missing columns for pool %s", p)
		}
	}

	var rounds []tuner.Observation
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		obs := make(tuner.Observation, len(pools))
		for i, c := range idx {
			if obs[i].Size, err = strconv.Atoi(row[c.size]); err != nil {
				return nil, fmt.Errorf("line %d: size_%s: %w", line, pools[i], err)
			}
			if obs[i].Throughput, err = strconv.ParseFloat(row[c.tput], 64); err != nil {
				return nil, fmt.Errorf("line %d: throughput_%s: %w", line, pools[i], err)
			}
			if obs[i].Invocations, err = strconv.ParseFloat(row[c.inv], 64); err != nil {
				return nil, fmt.Errorf("line %d: invocations_%s: %w", line, pools[i], err)
			}
		}
		rounds = append(rounds, obs)
	}
	return rounds, nil
}

// replay feeds rounds through a fresh engine and writes one round log block
// per accepted round to w. Rejected rows are logged and skipped.
func replay(cfg tuner.Config, rounds []tuner.Observation, w io.Writer) (*trace.Trace, error) {
	writer := trace.NewWriter(w)
	tr := trace.NewTrace()
	engine, err := tuner.NewEngine(cfg, tuner.WithObserver(func(d tuner.Decision, _ []tuner.Pool) {
		rec := d.Record()
		tr.Record(rec)
		writer.Write(rec)
	}))
	if err != nil {
		return nil, err
	}
	for i, obs := range rounds {
		if _, err := engine.Round(obs); err != nil {
			logrus.Warnf("row %d skipped: %v", i+1, err)
		}
	}
	return tr, nil
}

// replayCmd runs recorded rounds offline
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Feed recorded rounds through a fresh tuner and print the round log",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		f, err := os.Open(roundsPath)
		if err != nil {
			logrus.Fatalf("Failed to open rounds file: %v", err)
		}
		defer func() { _ = f.Close() }()
		rounds, err := readRounds(f, cfg.Pools)
		if err != nil {
			logrus.Fatalf("Failed to read rounds: %v", err)
		}
		tr, err := replay(cfg, rounds, cmd.OutOrStdout())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		sum := trace.Summarize(tr.Points())
		logrus.Infof("Replayed %d of %d rows, mean reward %.4g, final arm %v",
			len(tr.Rounds()), len(rounds), sum.MeanReward, sum.FinalArm)
	},
}

func init() {
	replayCmd.Flags().StringVar(&roundsPath, "rounds", "rounds.csv", "CSV of recorded rounds")
	rootCmd.AddCommand(replayCmd)
}
