package handlers

import (
	"net/http"
	"time"

	"github.com/alimgiray/sentinel/internal/workers"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	started time.Time
	version string
	workers func() []workers.WorkerStatus
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{started: time.Now(), version: version}
}

// WithWorkers includes background worker snapshots in the health response.
func (h *HealthHandler) WithWorkers(status func() []workers.WorkerStatus) *HealthHandler {
	h.workers = status
	return h
}

// HealthCheck reports that the process is up
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.workers != nil {
		body["workers"] = h.workers()
	}
	c.JSON(http.StatusOK, body)
}
