package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachetune/server"
	"github.com/inference-sim/cachetune/tuner"
)

var (
	// CLI flags for the probe command
	probeAddr        string
	probeSizes       []int
	probeThroughputs []float64
	probeInvocations []float64
	probeTimeout     time.Duration
)

// ProbeClient speaks the client side of the round protocol.
type ProbeClient struct {
	addr    string
	pools   []string
	timeout time.Duration
}

// NewProbeClient creates a client for the tuner at addr.
func NewProbeClient(addr string, pools []string, timeout time.Duration) *ProbeClient {
	return &ProbeClient{addr: addr, pools: pools, timeout: timeout}
}

// Send reports one round and returns the partition the tuner chose.
func (c *ProbeClient) Send(ctx context.Context, obs tuner.Observation) ([]string, []int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, server.EncodeRequest(c.pools, obs)); err != nil {
		return nil, nil, fmt.Errorf("send: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive: %w", err)
	}
	if len(reply) == 0 {
		return nil, nil, fmt.Errorf("tuner at %s closed the connection without a reply", c.addr)
	}
	return server.ParseResponse(string(reply))
}

// buildObservation zips the probe flags into an observation for n pools.
func buildObservation(n int, sizes []int, throughputs, invocations []float64) (tuner.Observation, error) {
	if len(sizes) != n || len(throughputs) != n || len(invocations) != n {
		return nil, fmt.Errorf("need %d sizes, throughputs and invocations, got %d, %d, %d",
			n, len(sizes), len(throughputs), len(invocations))
	}
	obs := make(tuner.Observation, n)
	for i := range obs {
		obs[i] = tuner.PoolObservation{Size: sizes[i], Throughput: throughputs[i], Invocations: invocations[i]}
	}
	return obs, nil
}

// probeCmd sends one round to a running tuner
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one round to a running tuner and print its reply",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		obs, err := buildObservation(len(cfg.Pools), probeSizes, probeThroughputs, probeInvocations)
		if err != nil {
			logrus.Fatalf("Invalid probe: %v", err)
		}
		pools, sizes, err := NewProbeClient(probeAddr, cfg.Pools, probeTimeout).Send(cmd.Context(), obs)
		if err != nil {
			logrus.Fatalf("Probe failed: %v", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), server.EncodeResponse(pools, sizes))
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeAddr, "addr", "127.0.0.1:2333", "Tuner address")
	probeCmd.Flags().IntSliceVar(&probeSizes, "sizes", []int{176, 176}, "Current pool sizes")
	probeCmd.Flags().Float64SliceVar(&probeThroughputs, "throughputs", []float64{1, 1}, "Observed pool throughputs")
	probeCmd.Flags().Float64SliceVar(&probeInvocations, "invocations", []float64{0, 0}, "Observed pool invocation counts")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Round trip timeout")
	rootCmd.AddCommand(probeCmd)
}
