package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// componentStatus is one dependency's health, following the teacher's
// internal/api.Status shape.
type componentStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// healthResponse is the payload for GET /health, trimmed from the teacher's
// HealthStatus down to the components this pipeline actually has: no
// SystemInfo/BuildInfo globals, since this surface has no deployed-artifact
// version tracking to report.
type healthResponse struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Components map[string]componentStatus `json:"components"`
}

type simpleStatusResponse struct {
	Status string `json:"status"`
}

// HealthHandler serves the three standard probe endpoints, checking
// Postgres reachability the way the teacher's HealthCheckHandler pings sql.DB.
type HealthHandler struct {
	db          *sql.DB
	serviceName string
}

// NewHealthHandler builds a HealthHandler. db may be nil in tests that only
// exercise the liveness probe.
func NewHealthHandler(db *sql.DB, serviceName string) *HealthHandler {
	if serviceName == "" {
		serviceName = "productpipeline"
	}
	return &HealthHandler{db: db, serviceName: serviceName}
}

// RegisterHealthRoutes wires /health, /health/ready, and /health/live,
// mirroring the teacher's RegisterHealthCheckRoutes.
func RegisterHealthRoutes(router *gin.Engine, h *HealthHandler) {
	router.GET("/health", h.handleHealth)
	router.GET("/health/ready", h.handleReady)
	router.GET("/health/live", h.handleLive)
}

func (h *HealthHandler) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:     "ok",
		Service:    h.serviceName,
		Components: map[string]componentStatus{"database": h.checkDatabase()},
	}
	for _, cs := range resp.Components {
		if cs.Status != "ok" {
			resp.Status = "degraded"
			break
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) handleReady(c *gin.Context) {
	if cs := h.checkDatabase(); cs.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, simpleStatusResponse{Status: "ready"})
}

func (h *HealthHandler) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, simpleStatusResponse{Status: "alive"})
}

func (h *HealthHandler) checkDatabase() componentStatus {
	cs := componentStatus{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if h.db == nil {
		cs.Status = "error"
		cs.Message = "no database configured"
		return cs
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		cs.Status = "error"
		cs.Message = "database connection failed"
	}
	return cs
}
