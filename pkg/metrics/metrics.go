package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "region_cache_hits_total",
		Help: "Cache hits by cache kind (tree, index)",
	}, []string{"cache"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "region_cache_misses_total",
		Help: "Cache misses by cache kind (tree, index)",
	}, []string{"cache"})
	CacheInvalidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "region_cache_invalidations_total",
		Help: "Cache generation bumps after committed writes",
	})
	ValidationRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "region_validation_rejections_total",
		Help: "Rejected create/update requests by error kind",
	}, []string{"kind"})
	TreeBuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "region_tree_build_duration_ms",
		Help:    "Tree materialization duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "region_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheInvalidationsTotal)
	prometheus.MustRegister(ValidationRejectionsTotal)
	prometheus.MustRegister(TreeBuildDurationMs)
	prometheus.MustRegister(RequestsTotal)
}

// Handler отдаёт зарегистрированные метрики, монтируется на /metrics.
func Handler() http.Handler { return promhttp.Handler() }
