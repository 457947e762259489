package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachetune/tuner"
	"github.com/inference-sim/cachetune/tuner/arms"
)

// printArms lists the arm space in enumeration order, marking the arms the
// warm-up sweep visits.
func printArms(cfg tuner.Config, w io.Writer) error {
	space, err := arms.NewSpace(cfg.TotalUnits, cfg.Granularity, len(cfg.Pools))
	if err != nil {
		return err
	}
	sweep := make(map[int]bool, cfg.SampleTimes)
	for i := 0; i < cfg.SampleTimes; i++ {
		sweep[space.SweepIndex(i, cfg.SampleTimes)] = true
	}
	if _, err := fmt.Fprintf(w, "# %d arms over %v, total %d, step %d\n",
		space.Len(), cfg.Pools, space.Total(), space.Granularity()); err != nil {
		return err
	}
	for i, a := range space.All() {
		mark := ""
		if sweep[i] {
			mark = " sweep"
		}
		if _, err := fmt.Fprintf(w, "%d %s%s\n", i, a, mark); err != nil {
			return err
		}
	}
	return nil
}

// armsCmd prints the arm space of the loaded configuration
var armsCmd = &cobra.Command{
	Use:   "arms",
	Short: "Print the arm space for the loaded configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		if err := printArms(cfg, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Failed to print arms: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(armsCmd)
}
