// Package metrics holds Prometheus instruments that are used across the
// dispatcher.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded on DispatchTotal.
const (
	OutcomeAction      = "action"
	OutcomeStatic      = "static"
	OutcomeExcluded    = "excluded"
	OutcomePassThrough = "pass_through"
	OutcomeError       = "error"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_dispatch_total",
			Help: "Requests handled by the dispatch filter, by outcome.",
		}, []string{"outcome"})

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gate_dispatch_duration_seconds",
			Help:    "Time spent inside the dispatch filter, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"})

	MappingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_mapping_errors_total",
			Help: "Cumulative number of action mapper failures.",
		})

	ConfigBuildTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_config_build_total",
			Help: "Cumulative number of configuration snapshots built.",
		})

	ConfigBuildErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_config_build_errors_total",
			Help: "Cumulative number of failed configuration builds.",
		})

	ConfigReloadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_config_reload_total",
			Help: "Cumulative number of configuration reloads (teardown plus refold).",
		})

	ActiveContexts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_active_action_contexts",
			Help: "Number of requests currently holding a bound action context.",
		})
)

func init() {
	prometheus.MustRegister(
		DispatchTotal,
		DispatchDuration,
		MappingErrorsTotal,
		ConfigBuildTotal,
		ConfigBuildErrorsTotal,
		ConfigReloadTotal,
		ActiveContexts,
	)
}
