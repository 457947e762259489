package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/cachetune/tuner"
)

const namespace = "cachetune"

// Metrics exports round outcomes as Prometheus series.
type Metrics struct {
	reg *prometheus.Registry

	rounds    *prometheus.CounterVec
	malformed prometheus.Counter
	reward    prometheus.Gauge
	poolSize  *prometheus.GaugeVec
	phase     prometheus.Gauge
	alpha     prometheus.Gauge
	duration  prometheus.Summary
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "rounds handled, by outcome (updated or noop)",
		}, []string{"outcome"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_requests_total",
			Help:      "requests rejected as malformed",
		}),
		reward: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reward",
			Help:      "reward of the latest updated round",
		}),
		poolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "units assigned to each pool by the latest decision",
		}, []string{"pool"}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "scheduler phase: 0 sampling, 1 exploiting, 2 converged",
		}),
		alpha: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alpha",
			Help:      "current exploration coefficient",
		}),
		duration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "round_seconds",
			Help:      "time spent computing a round",
		}),
	}
	reg.MustRegister(m.rounds, m.malformed, m.reward, m.poolSize, m.phase, m.alpha, m.duration)
	return m
}

// Observe is a tuner.RoundObserver.
func (m *Metrics) Observe(d tuner.Decision, pools []tuner.Pool) {
	m.rounds.WithLabelValues(d.Outcome.String()).Inc()
	if d.Outcome == tuner.OutcomeUpdated {
		m.reward.Set(d.Reward)
	}
	for i, p := range pools {
		if i < len(d.Arm) {
			m.poolSize.WithLabelValues(p.Name).Set(float64(d.Arm[i]))
		}
	}
	m.phase.Set(float64(d.Phase))
	m.alpha.Set(d.Alpha)
	m.duration.Observe(d.Elapsed().Seconds())
}

// Malformed counts one rejected request.
func (m *Metrics) Malformed() {
	m.malformed.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		ErrorLog: logrus.StandardLogger(),
	})
}

// DebugHandler serves the engine's scheduler state as JSON.
func DebugHandler(e *tuner.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := e.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			logrus.Warnf("debug state: %v", err)
		}
	})
}

// Mux routes /metrics and /debug/state.
func Mux(m *Metrics, e *tuner.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/debug/state", DebugHandler(e))
	return mux
}
