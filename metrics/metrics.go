package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// DiagnosesTotal counts completed diagnosis pipeline runs by label.
	DiagnosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diagassist",
		Subsystem: "pipeline",
		Name:      "diagnoses_total",
		Help:      "Total number of completed diagnosis pipeline runs, labeled by predicted label.",
	}, []string{"label"})

	// InferenceDurationSeconds is time spent in model inference per run.
	InferenceDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "diagassist",
		Subsystem: "pipeline",
		Name:      "inference_duration_seconds",
		Help:      "Time to preprocess and run model inference on one uploaded image.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	// LLMRequestsTotal counts note-generation and chat calls by outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diagassist",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Total number of language model calls, labeled by kind and result.",
	}, []string{"kind", "result"})

	// LLMDurationSeconds is wall time per language model call.
	LLMDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "diagassist",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Wall time of language model calls, labeled by kind.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"kind"})

	// ChatTurnsTotal counts chat turns by outcome.
	ChatTurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diagassist",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Total number of chat turns, labeled by result.",
	}, []string{"result"})

	// ActiveSessions is the current number of live sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "diagassist",
		Subsystem: "session",
		Name:      "active",
		Help:      "Current number of live sessions held in memory.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			DiagnosesTotal,
			InferenceDurationSeconds,
			LLMRequestsTotal,
			LLMDurationSeconds,
			ChatTurnsTotal,
			ActiveSessions,
		)
	})
}
