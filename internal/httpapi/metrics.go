package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collectors, grounded on the teacher's internal/observability
// MetricsCollector (HistogramVec/CounterVec registered on the default
// registerer, served via promhttp.Handler), but measuring this pipeline's
// own concerns instead of generic request latency: job outcomes, ECP
// distribution, budget exhaustion, and the config cache's hit ratio (§4.3,
// §4.10).
var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productpipeline_jobs_total",
			Help: "Crawl jobs completed, labeled by terminal status.",
		},
		[]string{"status"},
	)

	ecpScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "productpipeline_ecp_score",
			Help:    "Enrichment Completion Percentage computed per product write.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0,10,...,100
		},
	)

	budgetExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productpipeline_budget_exhausted_total",
			Help: "Times a per-product or per-session budget ceiling was hit (§4.10).",
		},
		[]string{"scope"}, // "product" or "session"
	)

	configCacheAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productpipeline_config_cache_access_total",
			Help: "Config cache lookups, labeled by outcome, for computing hit ratio.",
		},
		[]string{"outcome"}, // "hit" or "miss"
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, ecpScore, budgetExhaustedTotal, configCacheAccessTotal)
}

// RegisterMetricsRoute mounts /metrics on router, the gin equivalent of the
// teacher's MetricsCollector.Handler() wired onto a plain net/http mux.
func RegisterMetricsRoute(router *gin.Engine) {
	h := promhttp.Handler()
	router.GET("/metrics", gin.WrapH(h))
}

// RecordJobOutcome increments the job counter for a terminal status
// (pending/running are not terminal and are never recorded here).
func RecordJobOutcome(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveECP records one product write's Enrichment Completion Percentage.
func ObserveECP(pct float64) {
	ecpScore.Observe(pct)
}

// RecordBudgetExhausted increments the budget-exhaustion counter for the
// given scope ("product" or "session").
func RecordBudgetExhausted(scope string) {
	budgetExhaustedTotal.WithLabelValues(scope).Inc()
}

// RecordCacheAccess increments the config cache hit/miss counter; the ratio
// is computed at query time in Prometheus (hit / (hit + miss)).
func RecordCacheAccess(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	configCacheAccessTotal.WithLabelValues(outcome).Inc()
}
