package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *Hub) {
	gin.SetMode(gin.TestMode)
	hub := newHub()
	go hub.run()

	router := gin.New()
	router.GET("/ws/jobs/:job_id", hub.handleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialJob(t *testing.T, srv *httptest.Server, jobID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs/" + jobID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastDeliversOnlyToMatchingJobSubscribers(t *testing.T) {
	srv, hub := newWSTestServer(t)

	jobA, jobB := uuid.New(), uuid.New()
	connA := dialJob(t, srv, jobA)
	connB := dialJob(t, srv, jobB)

	// Give the hub a moment to process both registrations before broadcasting.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(ProgressEvent{JobID: jobA, Status: "running", ProductsFound: 3})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := connA.ReadMessage()
	require.NoError(t, err)

	var event ProgressEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, jobA, event.JobID)
	require.Equal(t, 3, event.ProductsFound)

	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = connB.ReadMessage()
	require.Error(t, err, "job B's connection should not receive job A's event")
}

func TestHub_HandleConnection_RejectsInvalidJobID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newHub()
	go hub.run()
	router := gin.New()
	router.GET("/ws/jobs/:job_id", hub.handleConnection)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws/jobs/not-a-uuid", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
}
