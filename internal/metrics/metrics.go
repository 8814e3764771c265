package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "observr",
			Subsystem: "observer",
			Name:      "events_total",
			Help:      "Number of filesystem events dispatched, per observer and event type.",
		}, []string{"observer", "type"},
	)
	suppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "observr",
			Subsystem: "observer",
			Name:      "suppressed_total",
			Help:      "Number of directory modification events suppressed from the change log.",
		}, []string{"observer"},
	)
	recordDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "observr",
			Subsystem: "observer",
			Name:      "record_duration_seconds",
			Help:      "Time spent appending an event to the change log.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"observer"},
	)
	observerRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "observr",
			Subsystem: "observer",
			Name:      "running",
			Help:      "Whether an observer is currently watching its path (1 = running).",
		}, []string{"observer"},
	)

	serviceLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "observr",
			Subsystem: "service",
			Name:      "launches_total",
			Help:      "Number of detached service launches.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "observr",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of service stops (signal delivered).",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{eventsTotal, suppressedTotal, recordDuration, observerRunning, serviceLaunches, serviceStops}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				_ = are // keep existing
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncEvent(observer, eventType string) {
	if regOK.Load() {
		eventsTotal.WithLabelValues(observer, eventType).Inc()
	}
}

func IncSuppressed(observer string) {
	if regOK.Load() {
		suppressedTotal.WithLabelValues(observer).Inc()
	}
}

func ObserveRecordDuration(observer string, seconds float64) {
	if regOK.Load() {
		recordDuration.WithLabelValues(observer).Observe(seconds)
	}
}

func SetObserverRunning(observer string, running bool) {
	if regOK.Load() {
		var value float64
		if running {
			value = 1
		}
		observerRunning.WithLabelValues(observer).Set(value)
	}
}

func IncServiceLaunch(name string) {
	if regOK.Load() {
		serviceLaunches.WithLabelValues(name).Inc()
	}
}

func IncServiceStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}
