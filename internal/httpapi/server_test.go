package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOperationalRoutesAndServesTraffic(t *testing.T) {
	srv := New("127.0.0.1:0", Deps{ServiceName: "productpipeline-test", Scheduler: &fakeSchedulerAPI{}})
	require.NotNil(t, srv.Engine)
	require.NotNil(t, srv.Hub)

	routes := srv.Engine.Routes()
	var hasHealth, hasMetrics, hasTrigger, hasWS bool
	for _, r := range routes {
		switch r.Path {
		case "/health":
			hasHealth = true
		case "/metrics":
			hasMetrics = true
		case "/trigger/:schedule_slug":
			hasTrigger = true
		case "/ws/jobs/:job_id":
			hasWS = true
		}
	}
	assert.True(t, hasHealth, "expected /health route")
	assert.True(t, hasMetrics, "expected /metrics route")
	assert.True(t, hasTrigger, "expected /trigger/:schedule_slug route")
	assert.True(t, hasWS, "expected /ws/jobs/:job_id route")
}

func TestNew_WithoutSchedulerOmitsTriggerRoutes(t *testing.T) {
	srv := New("127.0.0.1:0", Deps{})
	for _, r := range srv.Engine.Routes() {
		assert.NotEqual(t, "/trigger/:schedule_slug", r.Path)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := New("127.0.0.1:0", Deps{})
	require.NoError(t, srv.Start())
	require.NotContains(t, srv.Addr(), ":0", "Start should resolve the bound port")

	resp, err := http.Get("http://" + srv.Addr() + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
