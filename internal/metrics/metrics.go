// Package metrics exposes controller measurements in Prometheus format.
//
// The CLI runs one action per process, so instead of an HTTP endpoint the
// registry is written to a node_exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pkg/errors"
)

const namespace = "oneimage"

// Metrics holds the collectors. It satisfies image.Observer.
type Metrics struct {
	registry *prometheus.Registry

	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	polls    *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Image actions run, by action and outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time spent running image actions, including waits.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"action"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Remote state polls while waiting, by target.",
		}, []string{"target"}),
	}
	m.registry.MustRegister(m.actions, m.duration, m.polls)
	return m
}

// ObserveAction counts one finished action.
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	m.actions.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

// ObservePoll counts one poll of target ("image", "vm" or "delete").
func (m *Metrics) ObservePoll(target string) {
	m.polls.WithLabelValues(target).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
