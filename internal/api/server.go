package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reportengine/internal/executor"
	"github.com/reportengine/internal/health"
	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/scheduler"
	"github.com/reportengine/internal/store"
)

type Server struct {
	orchestrator *executor.Orchestrator
	scheduler    *scheduler.Manager
	monitor      *health.Monitor
	execs        store.ExecutionStore
	router       *gin.Engine
}

func NewServer(orchestrator *executor.Orchestrator, sched *scheduler.Manager, monitor *health.Monitor, execs store.ExecutionStore) *Server {
	server := &Server{
		orchestrator: orchestrator,
		scheduler:    sched,
		monitor:      monitor,
		execs:        execs,
		router:       gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// Execution endpoints
	api.POST("/configs/:id/execute", s.executeConfig)
	api.GET("/executions/:id", s.getExecution)
	api.POST("/executions/:id/cancel", s.cancelExecution)

	// Schedule endpoints
	api.POST("/schedules/:id/trigger", s.triggerSchedule)
	api.POST("/schedules/reload", s.reloadSchedules)
	api.GET("/jobs", s.listJobs)

	api.GET("/health", s.getHealth)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// executeConfig starts a manual execution. The response carries the
// execution id as soon as the RUNNING record exists; progress is polled via
// GET /executions/:id.
func (s *Server) executeConfig(c *gin.Context) {
	configID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config id"})
		return
	}

	executedBy := c.GetHeader("X-User-ID")
	if executedBy == "" {
		executedBy = "api"
	}

	// An optional schedule_id attaches schedule identity to a manual run, so
	// its time window and last_run_at bookkeeping match a cron firing.
	var scheduleID *uint
	if raw := c.Query("schedule_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule_id"})
			return
		}
		scheduleID = &id
	}

	executionID, err := s.orchestrator.Submit(c.Request.Context(), configID, scheduleID, executedBy)
	if err != nil {
		if errors.Is(err, executor.ErrAdmissionTimeout) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"execution_id": executionID,
		"status":       models.ExecutionRunning,
	})
}

func (s *Server) getExecution(c *gin.Context) {
	exec, err := s.execs.GetExecution(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrExecutionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logs, err := s.execs.ListDeliveryLogs(exec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution":  exec,
		"deliveries": logs,
	})
}

func (s *Server) cancelExecution(c *gin.Context) {
	if err := s.orchestrator.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, executor.ErrExecutionNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// triggerSchedule fires a schedule out of band with its full schedule
// identity, unlike executeConfig which runs without one.
func (s *Server) triggerSchedule(c *gin.Context) {
	scheduleID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	executedBy := c.GetHeader("X-User-ID")
	if executedBy == "" {
		executedBy = "api"
	}

	executionID, err := s.scheduler.TriggerSchedule(c.Request.Context(), scheduleID, executedBy)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrScheduleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		case errors.Is(err, executor.ErrAdmissionTimeout):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"execution_id": executionID,
		"status":       models.ExecutionRunning,
	})
}

func (s *Server) reloadSchedules(c *gin.Context) {
	if err := s.scheduler.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "schedules reloaded",
		"jobs":    s.scheduler.Jobs(),
	})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Jobs())
}

func (s *Server) getHealth(c *gin.Context) {
	snapshot := s.monitor.Snapshot()
	status := http.StatusOK
	if snapshot.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, snapshot)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
