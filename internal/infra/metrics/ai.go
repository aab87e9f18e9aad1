package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiPromptTokens,
		aiCallsLatencyMs,
		embeddingUpsertFailures,
	)
}

var aiPromptTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_prompt_tokens_total",
		Help: "Sum of prompt (input) tokens per provider/kind.",
	},
	[]string{"provider", "kind"}, // kind: 'chat', 'summary', 'ideas'
)

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"provider", "kind", "success"},
)

var embeddingUpsertFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "embedding_upsert_failures_total",
		Help: "Vector index upserts that failed and were skipped.",
	},
)

func AddPromptTokens(provider, kind string, n int) {
	aiPromptTokens.WithLabelValues(norm(provider), norm(kind)).Add(float64(n))
}

func ObserveAICall(provider, kind string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(kind), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncEmbeddingUpsertFailure() {
	embeddingUpsertFailures.Inc()
}
