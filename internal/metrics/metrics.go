// Package metrics holds the process-wide Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mosaic"

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Presenter sessions currently registered.",
	})

	SessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_starts_total",
		Help:      "Presenter start attempts by outcome.",
	}, []string{"result"})

	StreamsNegotiated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streams_negotiated_total",
		Help:      "Endpoints that completed offer/answer.",
	})

	CandidatesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_queued_total",
		Help:      "Remote ICE candidates buffered before their endpoint existed.",
	})

	CandidatesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_applied_total",
		Help:      "Remote ICE candidates handed to an endpoint.",
	}, []string{"source"})

	BackendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_call_duration_seconds",
		Help:      "Latency of media backend RPCs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "result"})
)

const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultStopped  = "stopped"

	SourceLive  = "live"
	SourceQueue = "queue"
)
