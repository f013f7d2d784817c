package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(aiCallsLatencyMs, aiRetriesTotal) }

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
	},
	[]string{"provider", "model", "success"},
)

var aiRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_retries_total",
		Help: "Retried AI calls by provider.",
	},
	[]string{"provider"},
)

func ObserveAICall(provider, model string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func IncAIRetry(provider string) {
	aiRetriesTotal.WithLabelValues(norm(provider)).Inc()
}
