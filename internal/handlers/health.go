package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	start := time.Now()

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})

	h.logger.Debug("health check completed",
		"duration", time.Since(start).String(),
		"remote_addr", c.ClientIP(),
	)
}
