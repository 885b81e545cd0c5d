package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/services"
)

// HealthHandler reports whether the API and its database are usable.
type HealthHandler struct {
	housekeeping *services.HousekeepingService
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(housekeeping *services.HousekeepingService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		housekeeping: housekeeping,
		logger:       logging.OrNop(logger),
	}
}

// Health answers 200 with catalog counts, or 503 when the database is down.
func (h *HealthHandler) Health(c *gin.Context) {
	report, err := h.housekeeping.Health()
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "error",
			"message":  "Database connection failed",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"message":  "Rollout Ready API is running",
		"database": "connected",
		"counts": gin.H{
			"users":     report.Users,
			"roles":     report.Roles,
			"templates": report.Templates,
			"projects":  report.Projects,
		},
		"admin_user_exists": report.AdminUserExists,
	})
}
