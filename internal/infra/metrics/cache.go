package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Tracks cache hits and misses for various caches.",
	},
	[]string{"cache", "result"}, // e.g., cache="workspace_context", result="hit"
)

func IncCacheHit(cache string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), "hit").Inc()
}

func IncCacheMiss(cache string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), "miss").Inc()
}
