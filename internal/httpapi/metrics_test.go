package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterMetricsRoute_ServesPrometheusExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterMetricsRoute(router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "productpipeline_jobs_total")
}

func TestRecordJobOutcome_IncrementsCounterForStatus(t *testing.T) {
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	RecordJobOutcome("completed")
	after := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheAccess_SplitsHitAndMissLabels(t *testing.T) {
	beforeHit := testutil.ToFloat64(configCacheAccessTotal.WithLabelValues("hit"))
	beforeMiss := testutil.ToFloat64(configCacheAccessTotal.WithLabelValues("miss"))

	RecordCacheAccess(true)
	RecordCacheAccess(false)

	assert.Equal(t, beforeHit+1, testutil.ToFloat64(configCacheAccessTotal.WithLabelValues("hit")))
	assert.Equal(t, beforeMiss+1, testutil.ToFloat64(configCacheAccessTotal.WithLabelValues("miss")))
}

func TestRecordBudgetExhausted_LabelsByScope(t *testing.T) {
	before := testutil.ToFloat64(budgetExhaustedTotal.WithLabelValues("session"))
	RecordBudgetExhausted("session")
	assert.Equal(t, before+1, testutil.ToFloat64(budgetExhaustedTotal.WithLabelValues("session")))
}
