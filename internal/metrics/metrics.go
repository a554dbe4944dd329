// Package metrics provides Prometheus metrics for Tactix.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tactix"

// Registry holds every Tactix collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	aiRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_requests_total",
		Help:      "Requests sent to the generative AI service by kind and status.",
	}, []string{"kind", "status"})

	aiDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ai_request_duration_seconds",
		Help:      "Latency of generative AI requests.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
	}, []string{"kind"})

	simulationRuns = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "simulation_runs_total",
		Help:      "Match playback runs by outcome (started, finished, cancelled).",
	}, []string{"outcome"})

	goalsScheduled = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "goals_scheduled_total",
		Help:      "Goal events generated by the scheduler.",
	})

	commentaryEntries = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commentary_entries_total",
		Help:      "Commentary entries appended by kind.",
	}, []string{"kind"})

	audioCueFailures = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_cue_failures_total",
		Help:      "Audio cues that failed to play and were swallowed.",
	}, []string{"cue"})

	storageFallbacks = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_fallbacks_total",
		Help:      "Loads that fell back to a default record.",
	})

	activeSessions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Open assistant sessions.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordAIRequest records one AI request outcome and its latency.
func RecordAIRequest(kind string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	aiRequests.WithLabelValues(kind, status).Inc()
	aiDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordSimulationRun counts a playback run transition.
func RecordSimulationRun(outcome string) {
	simulationRuns.WithLabelValues(outcome).Inc()
}

// RecordGoalsScheduled adds n scheduled goals.
func RecordGoalsScheduled(n int) {
	goalsScheduled.Add(float64(n))
}

// RecordCommentary counts one commentary entry.
func RecordCommentary(kind string) {
	commentaryEntries.WithLabelValues(kind).Inc()
}

// RecordAudioCueFailure counts a swallowed audio failure.
func RecordAudioCueFailure(cue string) {
	audioCueFailures.WithLabelValues(cue).Inc()
}

// RecordStorageFallback counts a load that returned the default record.
func RecordStorageFallback() {
	storageFallbacks.Inc()
}

// SetActiveSessions sets the open session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
