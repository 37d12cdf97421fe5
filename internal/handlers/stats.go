package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/invoicer/internal/documents"
)

type StatsHandler struct {
	docs   *documents.Service
	logger *slog.Logger
}

func NewStatsHandler(docs *documents.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		docs:   docs,
		logger: logger,
	}
}

// Stats reports the document cache snapshot.
func (h *StatsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.docs.Stats())
}

// Clear empties the document cache and resets its counters.
func (h *StatsHandler) Clear(c *gin.Context) {
	before := h.docs.Stats()
	h.docs.ClearCache()

	h.logger.Info("document cache cleared",
		"entries", before.Entries,
		"size", before.Size,
		"remote_addr", c.ClientIP(),
	)
	c.Status(http.StatusNoContent)
}
