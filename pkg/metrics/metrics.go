// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "barberline"

var (
	DialogueTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dialogue",
		Name:      "turns_total",
		Help:      "Caller turns handled, by resulting state and detected intent.",
	}, []string{"state", "intent"})

	DialogueTurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dialogue",
		Name:      "turn_duration_seconds",
		Help:      "Wall time spent handling one caller turn.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
	}, []string{"state"})

	HoldOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "availability",
		Name:      "hold_outcomes_total",
		Help:      "Hold attempts by outcome.",
	}, []string{"outcome"})

	ConfirmOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "availability",
		Name:      "confirm_outcomes_total",
		Help:      "Confirm attempts by outcome.",
	}, []string{"outcome"})

	SweptBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "availability",
		Name:      "swept_blocks_total",
		Help:      "Grid blocks reverted to free by the TTL sweep.",
	})

	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "External calls by upstream and outcome.",
	}, []string{"upstream", "outcome"})

	RenderResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "renderer",
		Name:      "results_total",
		Help:      "Render requests by result: hit, synthesized or fallback.",
	}, []string{"result"})

	KafkaMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "messages_total",
		Help:      "Kafka messages by direction, topic and outcome.",
	}, []string{"direction", "topic", "outcome"})

	KafkaDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "duration_seconds",
		Help:      "Time spent publishing or handling one Kafka message.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"direction", "topic"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
