package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

const namespace = "ownership"

// #region sink
// Sink records decision engine metrics on its own registry so independent
// sinks never collide.
type Sink struct {
	registry *prometheus.Registry

	decisions    *prometheus.CounterVec
	confidence   *prometheus.HistogramVec
	latency      prometheus.Histogram
	activeModel  *prometheus.GaugeVec
	rollbacks    prometheus.Counter
	executions   *prometheus.CounterVec
	observations *prometheus.CounterVec
	queued       prometheus.Gauge
}

func NewSink() *Sink {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Sink{
		registry: reg,

		// Labels: method, kind
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "decisions_total",
			Help:      "Classification decisions by method and ownership kind",
		}, []string{"method", "kind"}),

		confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "confidence",
			Help:      "Distribution of decision confidence",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.8, 0.9, 0.95, 1.0},
		}, []string{"method"}),

		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "latency_seconds",
			Help:      "Time to classify one variable",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		// Exactly one version carries 1.
		activeModel: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "active_model",
			Help:      "Active model version (1 for the active version label)",
		}, []string{"version"}),

		rollbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "rollbacks_total",
			Help:      "Model version rollbacks",
		}),

		executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrain",
			Name:      "executions_total",
			Help:      "Retraining cycles by outcome status",
		}, []string{"status"}),

		observations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abtest",
			Name:      "observations_total",
			Help:      "A/B observations by variant and correctness",
		}, []string{"variant", "correct"}),

		queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "active",
			Name:      "pending",
			Help:      "Uncertain samples waiting for a label",
		}),
	}
}

// Registry exposes the sink's registry for gathering.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// RecordDecision counts one classification and observes its confidence.
func (s *Sink) RecordDecision(r hybrid.Result) {
	method := r.Method.String()
	s.decisions.WithLabelValues(method, r.Kind.String()).Inc()
	s.confidence.WithLabelValues(method).Observe(r.Confidence)
}

func (s *Sink) RecordLatency(d time.Duration) {
	s.latency.Observe(d.Seconds())
}

// SetActiveVersion moves the active marker to v.
func (s *Sink) SetActiveVersion(v registry.Version) {
	s.activeModel.Reset()
	s.activeModel.WithLabelValues(v.String()).Set(1)
}

// RecordRollback counts successful rollbacks and moves the active marker.
func (s *Sink) RecordRollback(r registry.RollbackResult) {
	if !r.Success {
		return
	}
	s.rollbacks.Inc()
	s.SetActiveVersion(r.To)
}

// RecordOutcome counts a retraining cycle, and moves the active marker when
// the cycle activated a new version.
func (s *Sink) RecordOutcome(o retrain.Outcome) {
	s.executions.WithLabelValues(string(o.Status)).Inc()
	if o.IsSuccess() && o.Activated {
		s.SetActiveVersion(o.Version)
	}
}

func (s *Sink) RecordObservation(o abtest.Observation) {
	correct := "unknown"
	if o.Correct != nil {
		correct = fmt.Sprint(*o.Correct)
	}
	s.observations.WithLabelValues(o.Variant.String(), correct).Inc()
}

func (s *Sink) SetPending(n int) {
	s.queued.Set(float64(n))
}

// WriteTextfile dumps every metric in the text exposition format, for the
// node exporter's textfile collector.
func (s *Sink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// #endregion sink
