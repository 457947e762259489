package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cachetune/server"
	"github.com/inference-sim/cachetune/tuner"
	"github.com/inference-sim/cachetune/tuner/trace"
)

var (
	// CLI flags for the serve command
	logLevel      string        // Log verbosity level
	listenAddr    string        // TCP address for round requests
	roundLogPath  string        // Round log file
	metricsListen string        // HTTP address for /metrics and /debug/state; empty disables
	connTimeout   time.Duration // Per-connection read and write deadline
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cachetune",
	Short: "Online cache partition tuner driven by a LinUCB contextual bandit",
}

// serveCmd runs the tuner behind the TCP round protocol
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve partition decisions to cache clients",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		if err := os.MkdirAll(filepath.Dir(roundLogPath), 0o755); err != nil {
			logrus.Fatalf("Failed to create round log directory: %v", err)
		}
		roundLog, err := os.Create(roundLogPath)
		if err != nil {
			logrus.Fatalf("Failed to open round log %s: %v", roundLogPath, err)
		}
		defer func() { _ = roundLog.Close() }()
		writer := trace.NewWriter(roundLog)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := server.NewMetrics(reg)

		engine, err := tuner.NewEngine(cfg,
			tuner.WithObserver(func(d tuner.Decision, _ []tuner.Pool) { writer.Write(d.Record()) }),
			tuner.WithObserver(metrics.Observe),
		)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		logrus.Infof("Tuning %v over %d units in steps of %d (%d arms), transform=%s, reward=%s",
			cfg.Pools, cfg.TotalUnits, cfg.Granularity, engine.Space().Len(), transformName(cfg), cfg.Reward)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if metricsListen != "" {
			httpSrv := &http.Server{
				Addr:              metricsListen,
				Handler:           server.Mux(metrics, engine),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logrus.Infof("Metrics on http://%s/metrics", metricsListen)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.Errorf("Metrics server: %v", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()
		}

		ln, err := net.Listen("tcp", listenAddr)
		if err != nil {
			logrus.Fatalf("Failed to listen on %s: %v", listenAddr, err)
		}
		srv := server.New(engine, server.WithTimeout(connTimeout), server.WithMetrics(metrics))
		if err := srv.Serve(ctx, ln); err != nil {
			logrus.Errorf("Server stopped: %v", err)
			return
		}
		logrus.Infof("Shut down after %d rounds", engine.Snapshot().Round)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func transformName(cfg tuner.Config) string {
	if cfg.Transform.Name == "" {
		return "sigmoid"
	}
	return cfg.Transform.Name
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	addTunerFlags(rootCmd.PersistentFlags())

	serveCmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:2333", "TCP address for round requests")
	serveCmd.Flags().StringVar(&roundLogPath, "round-log", "Logs/linucb.log", "Round log file (truncated on start)")
	serveCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "HTTP address for /metrics and /debug/state (disabled when empty)")
	serveCmd.Flags().DurationVar(&connTimeout, "conn-timeout", server.DefaultTimeout, "Per-connection read and write deadline")

	rootCmd.AddCommand(serveCmd)
}
