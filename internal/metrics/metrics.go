// Package metrics exposes Prometheus collectors for the dashboard core.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// PollRefreshes counts refresh attempts per loop ("status", "tasks") and result ("ok", "error").
	PollRefreshes *prometheus.CounterVec
	// AnalysisRequests counts analysis outcomes ("ok", "fallback", "skipped").
	AnalysisRequests *prometheus.CounterVec
	// SessionsActive is 1 while a stream is selected.
	SessionsActive prometheus.Gauge
	// WSClients is the number of connected dashboard websockets.
	WSClients prometheus.Gauge
	// JobsEnqueued counts queued background jobs by type.
	JobsEnqueued *prometheus.CounterVec
)

// Init registers all collectors. It is safe to call more than once.
func Init() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		PollRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_refresh_total",
			Help: "Backend refreshes by loop and result",
		}, []string{"loop", "result"})
		AnalysisRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Transcript analyses by result",
		}, []string{"result"})
		SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_sessions_active",
			Help: "Currently active monitor sessions",
		})
		WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_ws_clients",
			Help: "Connected dashboard websocket clients",
		})
		JobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Background jobs enqueued by type",
		}, []string{"type"})

		registry.MustRegister(
			PollRefreshes, AnalysisRequests, SessionsActive, WSClients, JobsEnqueued,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObservePoll records one refresh result.
func ObservePoll(loop string, err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	PollRefreshes.WithLabelValues(loop, result).Inc()
}

// ObserveAnalysis records one analysis outcome.
func ObserveAnalysis(result string) {
	Init()
	AnalysisRequests.WithLabelValues(result).Inc()
}
