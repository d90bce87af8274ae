package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UpstreamRequests counts outbound calls per upstream surface.
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikimetron",
		Name:      "upstream_requests_total",
		Help:      "Outbound requests per upstream surface.",
	}, []string{"surface"})

	// UpstreamRetries counts retried transient failures per surface.
	UpstreamRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikimetron",
		Name:      "upstream_retries_total",
		Help:      "Retried transient upstream failures per surface.",
	}, []string{"surface"})

	// TasksFinished counts tasks per terminal status.
	TasksFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikimetron",
		Name:      "tasks_finished_total",
		Help:      "Analysis tasks per terminal status.",
	}, []string{"status"})

	// MetricFailures counts isolated metric computation failures.
	MetricFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikimetron",
		Name:      "metric_failures_total",
		Help:      "Metric computations that degraded to their minimum value.",
	}, []string{"metric"})
)

var registerOnce sync.Once

// Init registers collectors; call once from main.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(UpstreamRequests, UpstreamRetries, TasksFinished, MetricFailures)
	})
}
