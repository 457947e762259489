package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/cachetune/tuner/trace"
)

var summaryLogPath string // round log to summarize

// summarize parses a round log from r and writes its YAML summary to w.
func summarize(r io.Reader, w io.Writer) error {
	points, err := trace.Parse(r)
	if err != nil {
		return fmt.Errorf("parsing round log: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(trace.Summarize(points)); err != nil {
		return err
	}
	return enc.Close()
}

// summaryCmd prints statistics of a round log
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the rewards and partitions recorded in a round log",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		f, err := os.Open(summaryLogPath)
		if err != nil {
			logrus.Fatalf("Failed to open round log: %v", err)
		}
		defer func() { _ = f.Close() }()
		if err := summarize(f, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Summary failed: %v", err)
		}
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryLogPath, "round-log", "Logs/linucb.log", "Round log to summarize")
	rootCmd.AddCommand(summaryCmd)
}
