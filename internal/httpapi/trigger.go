package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// triggerRequest is the body of POST /trigger/:schedule_slug.
type triggerRequest struct {
	JobID *uuid.UUID `json:"job_id,omitempty"`
}

type triggerResponse struct {
	ScheduleSlug string    `json:"schedule_slug"`
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
}

// TriggerHandler exposes an operator-facing manual run of a schedule
// (§6 "operational surface"), calling straight into the Scheduler's
// RunScheduledJob the way a queue consumer would, but synchronously from an
// HTTP request instead of a popped queue.Job.
type TriggerHandler struct {
	scheduler SchedulerAPI
	log       *logging.Logger
}

// NewTriggerHandler builds a TriggerHandler bound to sched.
func NewTriggerHandler(sched SchedulerAPI) *TriggerHandler {
	return &TriggerHandler{scheduler: sched, log: logging.For("httpapi.trigger")}
}

// RegisterTriggerRoutes wires the manual-trigger and cancel endpoints.
func RegisterTriggerRoutes(router *gin.Engine, h *TriggerHandler) {
	router.POST("/trigger/:schedule_slug", h.handleTrigger)
	router.POST("/jobs/:job_id/cancel", h.handleCancel)
}

// handleTrigger runs a schedule's workload synchronously and reports the
// job's terminal status; a pre-existing job id may be supplied so this can
// also be used to retry a job a queue consumer already created.
func (h *TriggerHandler) handleTrigger(c *gin.Context) {
	slug := c.Param("schedule_slug")

	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	jobID := uuid.New()
	if req.JobID != nil {
		jobID = *req.JobID
	}

	if err := h.scheduler.RunScheduledJob(c.Request.Context(), slug, jobID); err != nil {
		h.log.Warn("manual trigger failed", "schedule_slug", slug, "job_id", jobID.String(), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, triggerResponse{ScheduleSlug: slug, JobID: jobID, Status: "completed"})
}

// handleCancel requests cooperative cancellation of a registered running job.
func (h *TriggerHandler) handleCancel(c *gin.Context) {
	raw := c.Param("job_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	if !h.scheduler.CancelJob(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job is not currently running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": "cancel_requested"})
}
