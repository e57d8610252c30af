// Package metrics exposes Prometheus counters and histograms for relay
// broadcasts and published records. Collectors are registered on a
// caller-supplied registry; a nil *Collector records nothing.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scriptorium"

// Collector holds the publication metrics.
type Collector struct {
	RelayOutcomes     *prometheus.CounterVec
	BroadcastDuration *prometheus.HistogramVec
	BroadcastAttempts *prometheus.HistogramVec
	RecordsPublished  *prometheus.CounterVec
	SchemaValidations *prometheus.CounterVec
}

// New creates a Collector and registers it on reg. An already registered
// collector of the same name is reused, so New is safe to call twice on one
// registry.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		RelayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_outcomes_total",
			Help:      "Per-relay broadcast outcomes by status.",
		}, []string{"relay", "status"}),

		BroadcastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Wall time of one event broadcast across all relays and retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "result"}),

		BroadcastAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_attempts",
			Help:      "Attempts needed per event broadcast, fallback included.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"kind"}),

		RecordsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records processed by the publisher by kind and result.",
		}, []string{"kind", "result"}),

		SchemaValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_validations_total",
			Help:      "Schema validations of untrusted event JSON by status.",
		}, []string{"status"}),
	}

	var err error
	if c.RelayOutcomes, err = register(reg, c.RelayOutcomes); err != nil {
		return nil, err
	}
	if c.BroadcastDuration, err = register(reg, c.BroadcastDuration); err != nil {
		return nil, err
	}
	if c.BroadcastAttempts, err = register(reg, c.BroadcastAttempts); err != nil {
		return nil, err
	}
	if c.RecordsPublished, err = register(reg, c.RecordsPublished); err != nil {
		return nil, err
	}
	if c.SchemaValidations, err = register(reg, c.SchemaValidations); err != nil {
		return nil, err
	}
	return c, nil
}

// register registers col, returning the existing collector when one with the
// same descriptor is already present.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, fmt.Errorf("metrics: register: %w", err)
	}
	return col, nil
}

// RelayOutcome counts one per-relay outcome.
func (c *Collector) RelayOutcome(relay, status string) {
	if c == nil {
		return
	}
	c.RelayOutcomes.WithLabelValues(relay, status).Inc()
}

// Broadcast records the duration and attempt count of one event broadcast.
func (c *Collector) Broadcast(kind string, success bool, attempts int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.BroadcastDuration.WithLabelValues(kind, result(success)).Observe(elapsed.Seconds())
	c.BroadcastAttempts.WithLabelValues(kind).Observe(float64(attempts))
}

// Record counts one record handled by the publisher.
func (c *Collector) Record(kind string, success bool) {
	if c == nil {
		return
	}
	c.RecordsPublished.WithLabelValues(kind, result(success)).Inc()
}

// SchemaValidation counts one validation of untrusted event JSON.
func (c *Collector) SchemaValidation(valid bool) {
	if c == nil {
		return
	}
	status := "valid"
	if !valid {
		status = "invalid"
	}
	c.SchemaValidations.WithLabelValues(status).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
