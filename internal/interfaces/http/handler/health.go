package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadinessCheck probes one dependency
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	service string
	version string
	checks  []ReadinessCheck
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service, version string, logger *zap.Logger, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		BaseHandler: newBaseHandler(logger),
		service:     service,
		version:     version,
		checks:      checks,
		timeout:     2 * time.Second,
	}
}

// Health reports that the process is up
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
	})
}

// Ready pings every dependency and answers 503 when one is down
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", check.Name), zap.Error(err))
			status[check.Name] = "down"
			ready = false
			continue
		}
		status[check.Name] = "up"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    gin.H{"status": "unavailable", "checks": status},
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeUnavailable,
				Message:   "A dependency is unavailable",
				Timestamp: time.Now().Unix(),
			},
		})
		return
	}
	h.Success(c, gin.H{"status": "ready", "checks": status})
}
