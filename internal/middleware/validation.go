package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

const invoiceIDKey = "invoice_id"

// ValidateInvoiceID parses the :id path parameter as a UUID and stores it on
// the context. Requests with a malformed id are rejected with 400.
func ValidateInvoiceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("id")
		id, err := uuid.Parse(raw)
		if err != nil {
			err = errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidInput, "invalid invoice id"),
				"invoice_id", raw,
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, errors.ToJSON(err))
			return
		}

		c.Set(invoiceIDKey, id)
		c.Next()
	}
}

// InvoiceID returns the id stored by ValidateInvoiceID, or uuid.Nil.
func InvoiceID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(invoiceIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
