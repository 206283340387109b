package handlers

import (
	"net/http"

	"github.com/cryptofolio/cryptofolio/pkg/health"
	"github.com/gin-gonic/gin"
)

// HealthHandlers exposes liveness and readiness probes
type HealthHandlers struct {
	checker *health.HealthChecker
	version string
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(checker *health.HealthChecker, version string) *HealthHandlers {
	return &HealthHandlers{
		checker: checker,
		version: version,
	}
}

// Health reports liveness
// GET /health
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports readiness of the service's dependencies
// GET /ready
func (h *HealthHandlers) Ready(c *gin.Context) {
	status, results := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": results,
	})
}
