// Package httpapi exposes the pipeline's operational surface (§6): manual
// trigger, health/readiness/liveness, Prometheus metrics, and a websocket
// progress stream for in-flight jobs. It follows the teacher's
// cmd/apiserver gin bootstrap and graceful-shutdown pattern, but carries a
// much lighter middleware chain: this surface has no session auth, CORS, or
// admin CRUD routes, only the handful of endpoints an operator or a
// deploy's sidecar needs.
package httpapi

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gin-gonic/gin"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// SchedulerAPI is the slice of scheduler.Scheduler the manual-trigger
// endpoint depends on. Declared locally, rather than importing
// internal/scheduler directly, so internal/scheduler is free to import this
// package back to record the job metrics in metrics.go without a cycle.
type SchedulerAPI interface {
	RunScheduledJob(ctx context.Context, scheduleSlug string, jobID uuid.UUID) error
	CancelJob(id uuid.UUID) bool
}

// Server bundles the gin engine and the stdlib http.Server wrapping it, the
// way the teacher's main.go builds srv := &http.Server{Handler: router}
// rather than calling router.Run directly, so shutdown can be driven
// explicitly.
type Server struct {
	Engine *gin.Engine
	Hub    *Hub

	srv *http.Server
	log *logging.Logger

	mu   sync.Mutex
	addr string // resolved listen address, set once Start's listener is bound
}

// Deps collects the server's dependencies.
type Deps struct {
	DB          *sql.DB
	Scheduler   SchedulerAPI
	ServiceName string
}

// New builds the gin engine with the operational routes registered
// (§6), mirroring the teacher's router construction in cmd/apiserver/main.go
// but with a two-entry middleware chain instead of the teacher's
// security/CORS/validation/rate-limit stack, since this surface is not
// internet-facing.
func New(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logging.For("httpapi")))

	hub := newHub()
	go hub.run()

	health := NewHealthHandler(deps.DB, deps.ServiceName)
	RegisterHealthRoutes(router, health)

	RegisterMetricsRoute(router)

	if deps.Scheduler != nil {
		trigger := NewTriggerHandler(deps.Scheduler)
		RegisterTriggerRoutes(router, trigger)
	}

	router.GET("/ws/jobs/:job_id", hub.handleConnection)

	return &Server{
		Engine: router,
		Hub:    hub,
		srv:    &http.Server{Addr: addr, Handler: router},
		log:    logging.For("httpapi"),
	}
}

// Start binds the listener and runs the HTTP server in a background
// goroutine, returning once the socket is bound so Addr() reports the
// resolved address immediately (useful when addr ends in ":0"). Errors
// surfacing after that point are logged, not returned, matching the
// teacher's fire-and-forget ListenAndServe goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped unexpectedly", err, "addr", s.Addr())
		}
	}()
	s.log.Info("http server started", "addr", s.Addr())
	return nil
}

// Addr reports the resolved listen address after Start has bound its
// socket; before that, it returns the address Server was configured with.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != "" {
		return s.addr
	}
	return s.srv.Addr
}

// Shutdown gracefully drains in-flight requests with the teacher's
// 10-second shutdown budget.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// requestLogger is a minimal structured-access-log middleware, replacing
// the teacher's gin.Default() combined logger/recovery with zap output
// routed through the component logger.
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
