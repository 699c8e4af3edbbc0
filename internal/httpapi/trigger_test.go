package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchedulerAPI struct {
	runErr      error
	runCalls    []string
	cancelFound bool
	cancelID    uuid.UUID
}

func (f *fakeSchedulerAPI) RunScheduledJob(ctx context.Context, scheduleSlug string, jobID uuid.UUID) error {
	f.runCalls = append(f.runCalls, scheduleSlug)
	return f.runErr
}

func (f *fakeSchedulerAPI) CancelJob(id uuid.UUID) bool {
	f.cancelID = id
	return f.cancelFound
}

func newTriggerRouter(sched SchedulerAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterTriggerRoutes(router, NewTriggerHandler(sched))
	return router
}

func TestHandleTrigger_SuccessReturnsCompletedStatus(t *testing.T) {
	fake := &fakeSchedulerAPI{}
	router := newTriggerRouter(fake)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger/weekly-whiskey-sweep", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	require.Len(t, fake.runCalls, 1)
	assert.Equal(t, "weekly-whiskey-sweep", fake.runCalls[0])
}

func TestHandleTrigger_SchedulerErrorReturns500(t *testing.T) {
	fake := &fakeSchedulerAPI{runErr: errors.New("no competition runner configured")}
	router := newTriggerRouter(fake)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger/port-competitions", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleTrigger_HonorsSuppliedJobID(t *testing.T) {
	fake := &fakeSchedulerAPI{}
	router := newTriggerRouter(fake)

	jobID := uuid.New()
	body := bytes.NewBufferString(`{"job_id":"` + jobID.String() + `"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger/weekly-whiskey-sweep", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), jobID.String())
}

func TestHandleCancel_UnknownJobReturns404(t *testing.T) {
	fake := &fakeSchedulerAPI{cancelFound: false}
	router := newTriggerRouter(fake)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+uuid.New().String()+"/cancel", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel_RegisteredJobReturnsAccepted(t *testing.T) {
	fake := &fakeSchedulerAPI{cancelFound: true}
	router := newTriggerRouter(fake)

	id := uuid.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+id.String()+"/cancel", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, id, fake.cancelID)
}

func TestHandleCancel_InvalidJobIDReturns400(t *testing.T) {
	fake := &fakeSchedulerAPI{}
	router := newTriggerRouter(fake)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/not-a-uuid/cancel", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
