package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"

	"github.com/muandane/special-stack/invoicer/internal/documents"
	"github.com/muandane/special-stack/invoicer/internal/middleware"
)

// MaxPrefetchIDs bounds a single prefetch request.
const MaxPrefetchIDs = 100

const pdfContentType = "application/pdf"

type DocumentHandler struct {
	docs   *documents.Service
	logger *slog.Logger
}

func NewDocumentHandler(docs *documents.Service, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docs:   docs,
		logger: logger,
	}
}

// PDF serves the rendered invoice, rendering it first on a cache miss.
func (h *DocumentHandler) PDF(c *gin.Context) {
	start := time.Now()
	id := middleware.InvoiceID(c)

	doc, hit, err := h.docs.Document(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
	}
	c.Header("X-Cache", cacheStatus)
	c.Header("X-Page-Count", strconv.Itoa(doc.PageCount()))
	c.Header("Content-Disposition", `inline; filename="invoice-`+id.String()+`.pdf"`)
	c.Header("Vary", "Accept-Encoding")

	data := doc.Bytes()
	if acceptsGzip(c.GetHeader("Accept-Encoding")) && ShouldCompress(pdfContentType, int64(len(data))) {
		compressed, err := CompressData(data)
		if err == nil && len(compressed) < len(data) {
			c.Header("Content-Encoding", "gzip")
			data = compressed
		}
	}

	c.Data(http.StatusOK, pdfContentType, data)

	h.logger.Debug("document served",
		"invoice_id", id.String(),
		"cache", cacheStatus,
		"size", len(data),
		"duration", time.Since(start).String(),
	)
}

type prefetchRequest struct {
	IDs []string `json:"ids"`
}

// Prefetch renders the requested invoices that are not cached yet.
func (h *DocumentHandler) Prefetch(c *gin.Context) {
	var req prefetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.Wrap(err, errors.CodeInvalidInput, "malformed prefetch body"))
		return
	}
	if len(req.IDs) == 0 {
		respondError(c, h.logger, errors.New(errors.CodeInvalidInput, "ids must not be empty"))
		return
	}
	if len(req.IDs) > MaxPrefetchIDs {
		respondError(c, h.logger, errors.Newf(errors.CodeInvalidInput, "at most %d ids per request", MaxPrefetchIDs))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, h.logger, errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidInput, "invalid invoice id"),
				"invoice_id", raw,
			))
			return
		}
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, h.docs.Prefetch(c.Request.Context(), ids))
}
