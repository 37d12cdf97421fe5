package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"

	"github.com/muandane/special-stack/invoicer/internal/documents"
	"github.com/muandane/special-stack/invoicer/internal/invoice"
	"github.com/muandane/special-stack/invoicer/internal/middleware"
)

// maxInvoiceBody caps PUT bodies after decompression.
const maxInvoiceBody = 1 << 20

type InvoiceHandler struct {
	store  invoice.Store
	docs   *documents.Service
	logger *slog.Logger
	now    func() time.Time
}

func NewInvoiceHandler(store invoice.Store, docs *documents.Service, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		store:  store,
		docs:   docs,
		logger: logger,
		now:    time.Now,
	}
}

// List returns invoices newest first, optionally narrowed by ?status= and
// a free-text ?q= over number, client and company.
func (h *InvoiceHandler) List(c *gin.Context) {
	filter := invoice.Filter{
		Status: invoice.Status(c.Query("status")),
		Query:  c.Query("q"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(c, h.logger, errors.Newf(errors.CodeInvalidInput, "unknown status %q", filter.Status))
		return
	}

	invoices, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": filter.Apply(invoices)})
}

// Duplicate stores a draft copy of an invoice under the next free number.
func (h *InvoiceHandler) Duplicate(c *gin.Context) {
	ctx := c.Request.Context()

	src, err := h.store.Get(ctx, middleware.InvoiceID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	existing, err := h.store.List(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	dup := src.Duplicate(h.now(), invoice.NextNumber(existing))
	if err := h.store.Put(ctx, dup); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("invoice duplicated",
		"invoice_id", dup.ID.String(),
		"source_id", src.ID.String(),
		"number", dup.Number,
	)
	c.JSON(http.StatusCreated, dup)
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, err := h.store.Get(c.Request.Context(), middleware.InvoiceID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Put creates or replaces an invoice. The id comes from the path, totals are
// recomputed and any cached document for the invoice is dropped.
func (h *InvoiceHandler) Put(c *gin.Context) {
	ctx := c.Request.Context()
	id := middleware.InvoiceID(c)

	body, err := h.readBody(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var inv invoice.Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		respondError(c, h.logger, errors.Wrap(err, errors.CodeInvalidInput, "malformed invoice body"))
		return
	}

	now := h.now()
	inv.ID = id
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = invoice.StatusDraft
	}
	for i := range inv.Items {
		if inv.Items[i].ID == uuid.Nil {
			inv.Items[i].ID = uuid.New()
		}
	}

	status := http.StatusOK
	existing, err := h.store.Get(ctx, id)
	switch {
	case err == nil:
		inv.CreatedAt = existing.CreatedAt
	case errors.GetCode(err) == errors.CodeNotFound:
		inv.CreatedAt = now
		status = http.StatusCreated
	default:
		respondError(c, h.logger, err)
		return
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.InvoiceDate.Add(invoice.DefaultPaymentTerm)
	}

	inv.CalculateTotals()
	if err := h.store.Put(ctx, &inv); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.docs.Invalidate(id)

	h.logger.Info("invoice stored",
		"invoice_id", id.String(),
		"number", inv.Number,
		"total_cents", inv.TotalCents,
		"created", status == http.StatusCreated,
	)
	c.JSON(status, &inv)
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	id := middleware.InvoiceID(c)
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.docs.Invalidate(id)

	h.logger.Info("invoice deleted", "invoice_id", id.String())
	c.Status(http.StatusNoContent)
}

// readBody returns the request body, inflating it when the client sent it
// gzip encoded.
func (h *InvoiceHandler) readBody(c *gin.Context) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInvoiceBody+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to read request body")
	}
	if len(data) > maxInvoiceBody {
		return nil, errors.Newf(errors.CodeInvalidInput, "request body exceeds %d bytes", maxInvoiceBody)
	}

	if c.GetHeader("Content-Encoding") == "gzip" {
		data, err = DecompressData(data, maxInvoiceBody)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to decompress request body")
		}
	}

	if len(data) > maxInvoiceBody {
		return nil, errors.Newf(errors.CodeInvalidInput, "request body exceeds %d bytes", maxInvoiceBody)
	}
	return data, nil
}
