// Package invoice models invoices and persists them.
package invoice

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusPaid      Status = "Paid"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
)

// DefaultPaymentTerm is the gap between invoice and due date for new invoices.
const DefaultPaymentTerm = 30 * 24 * time.Hour

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

type Company struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Client struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Item is one invoice line. Money is kept in cents.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Quantity    float64   `json:"quantity"`
	RateCents   int64     `json:"rate_cents"`
	AmountCents int64     `json:"amount_cents"`
}

type Invoice struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	InvoiceDate time.Time `json:"invoice_date"`
	DueDate     time.Time `json:"due_date"`

	Company Company `json:"company"`
	Client  Client  `json:"client"`
	Items   []Item  `json:"items"`

	// TaxRate is a percentage, e.g. 8.25.
	TaxRate       float64 `json:"tax_rate"`
	SubtotalCents int64   `json:"subtotal_cents"`
	TaxCents      int64   `json:"tax_cents"`
	TotalCents    int64   `json:"total_cents"`

	Notes     string    `json:"notes,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a draft invoice dated now and due after DefaultPaymentTerm.
func New(now time.Time) *Invoice {
	return &Invoice{
		ID:          uuid.New(),
		InvoiceDate: now,
		DueDate:     now.Add(DefaultPaymentTerm),
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CalculateTotals recomputes line amounts, subtotal, tax and total.
func (inv *Invoice) CalculateTotals() {
	var subtotal int64
	for i := range inv.Items {
		item := &inv.Items[i]
		item.AmountCents = roundCents(item.Quantity * float64(item.RateCents))
		subtotal += item.AmountCents
	}

	inv.SubtotalCents = subtotal
	inv.TaxCents = roundCents(float64(subtotal) * inv.TaxRate / 100)
	inv.TotalCents = inv.SubtotalCents + inv.TaxCents
}

// Validate reports the first field that prevents the invoice from being stored.
func (inv *Invoice) Validate() error {
	switch {
	case inv.ID == uuid.Nil:
		return errors.New(errors.CodeInvalidInput, "invoice id is required")
	case strings.TrimSpace(inv.Number) == "":
		return errors.New(errors.CodeInvalidInput, "invoice number is required")
	case strings.TrimSpace(inv.Company.Name) == "":
		return errors.New(errors.CodeInvalidInput, "company name is required")
	case strings.TrimSpace(inv.Client.Name) == "":
		return errors.New(errors.CodeInvalidInput, "client name is required")
	case !inv.Status.Valid():
		return errors.Newf(errors.CodeInvalidInput, "unknown status %q", inv.Status)
	case inv.TaxRate < 0:
		return errors.New(errors.CodeInvalidInput, "tax rate cannot be negative")
	}

	for i, item := range inv.Items {
		if item.Quantity < 0 {
			return errors.WithContext(
				errors.New(errors.CodeInvalidInput, "item quantity cannot be negative"),
				"item", i,
			)
		}
		if item.RateCents < 0 {
			return errors.WithContext(
				errors.New(errors.CodeInvalidInput, "item rate cannot be negative"),
				"item", i,
			)
		}
	}
	return nil
}

// Clone returns a deep copy so stores never share item slices with callers.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	if inv.Items != nil {
		out.Items = make([]Item, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	return &out
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
