package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/services"
)

// HealthHandler reports whether the recommender can serve rankings. A missing
// model or an unreachable PostgreSQL makes it unhealthy; Redis only degrades it.
type HealthHandler struct {
	logger        *logrus.Logger
	healthService *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth(c.Request.Context())
	c.Header("Cache-Control", "no-store")

	switch status.Status {
	case "healthy":
		c.JSON(http.StatusOK, status)
	case "degraded":
		h.logger.WithField("failures", status.NonCritical).Warn("Recommender degraded")
		c.JSON(http.StatusOK, status)
	case "unhealthy":
		h.logger.WithFields(logrus.Fields{
			"failures":     status.Critical,
			"non_critical": status.NonCritical,
		}).Error("Recommender unhealthy")
		c.JSON(http.StatusServiceUnavailable, status)
	default:
		h.logger.WithField("status", status.Status).Error("Unknown health status")
		c.JSON(http.StatusInternalServerError, status)
	}
}
