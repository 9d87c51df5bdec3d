package diagnostics

import (
	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink converts lifecycle events into Prometheus metrics.
type MetricsSink struct {
	phaseTotal    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	runTotal      *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	leakedTotal   prometheus.Counter
	active        prometheus.Gauge
}

// NewMetricsSink creates the lifecycle collectors under namespace and
// registers them with reg.
func NewMetricsSink(namespace string, reg prometheus.Registerer) (*MetricsSink, error) {
	if namespace == "" {
		namespace = "stagehand"
	}

	s := &MetricsSink{
		phaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "phase_calls_total",
				Help:      "Total number of component phase calls by phase and result",
			},
			[]string{"phase", "result"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "phase_duration_seconds",
				Help:      "Time taken by a single component phase call",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
			},
			[]string{"phase"},
		),
		runTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "runs_total",
				Help:      "Total number of lifecycle runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "run_duration_seconds",
				Help:      "Wall time from run start to ready or abort",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"outcome"},
		),
		leakedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "leaked_components_total",
				Help:      "Components that kept event bus subscriptions after deactivation",
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "active_components",
				Help:      "Components currently in the active state",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		s.phaseTotal, s.phaseDuration, s.runTotal, s.runDuration, s.leakedTotal, s.active,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handle updates the collectors for e.
func (s *MetricsSink) Handle(e Event) {
	switch e.Type {
	case PhaseCompleted:
		s.phaseTotal.WithLabelValues(string(e.Phase), "ok").Inc()
		s.phaseDuration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		switch e.Phase {
		case component.PhaseActivation:
			s.active.Inc()
		case component.PhaseDeactivation:
			if wasActive, _ := e.Metadata["was_active"].(bool); wasActive {
				s.active.Dec()
			}
		}
	case PhaseFailed:
		s.phaseTotal.WithLabelValues(string(e.Phase), "error").Inc()
		s.phaseDuration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		if e.Phase == component.PhaseDeactivation {
			if wasActive, _ := e.Metadata["was_active"].(bool); wasActive {
				s.active.Dec()
			}
		}
	case RunReady:
		s.runTotal.WithLabelValues("ready").Inc()
		s.runDuration.WithLabelValues("ready").Observe(e.Duration.Seconds())
	case RunAborted:
		s.runTotal.WithLabelValues("aborted").Inc()
		s.runDuration.WithLabelValues("aborted").Observe(e.Duration.Seconds())
	case ComponentLeaked:
		s.leakedTotal.Inc()
	}
}
