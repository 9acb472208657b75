// Package metrics exposes unit outcomes as Prometheus series on a private
// registry that is pushed to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"hashmove/internal/hm"
)

// Recorder implements hm.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	units        *prometheus.CounterVec
	rowsRewrite  *prometheus.CounterVec
	locate       *prometheus.CounterVec
	retries      *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashmove_units_total",
				Help: "Finished units by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		rowsRewrite: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashmove_rows_rewritten_total",
				Help: "Archive rows whose path references were rewritten.",
			},
			[]string{"table"},
		),
		locate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashmove_locate_total",
				Help: "Units by the locator strategy that produced their matches.",
			},
			[]string{"strategy"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashmove_retries_total",
				Help: "Unit attempts that failed and were retried.",
			},
			[]string{"operation"},
		),
		unitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hashmove_unit_duration_seconds",
				Help:    "Wall time of a unit including retries.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveUnit(operation string, result *hm.UnitResult, elapsed time.Duration) {
	r.units.WithLabelValues(operation, string(result.Outcome)).Inc()
	r.unitDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if result.Outcome != hm.OutcomeDone {
		return
	}
	r.locate.WithLabelValues(result.Strategy.String()).Inc()
	if result.PostsUpdated > 0 {
		r.rowsRewrite.WithLabelValues("posts").Add(float64(result.PostsUpdated))
	}
	if result.MessagesUpdated > 0 {
		r.rowsRewrite.WithLabelValues("discord_posts").Add(float64(result.MessagesUpdated))
	}
}

func (r *Recorder) ObserveRetry(operation string) {
	r.retries.WithLabelValues(operation).Inc()
}

// Push sends every series to a Pushgateway, replacing the job's previous group.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job, migrationID string) error {
	err := push.New(gatewayURL, job).
		Gatherer(r.registry).
		Grouping("migration_id", migrationID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}

// Compile-time check
var _ hm.Metrics = (*Recorder)(nil)
