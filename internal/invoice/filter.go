package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// numberPrefix is the prefix of generated invoice numbers, e.g. INV-0042.
const numberPrefix = "INV-"

// Filter selects invoices for listing. Zero values match everything.
type Filter struct {
	Status Status
	// Query matches number, client or company name, case-insensitively.
	Query string
}

func (f Filter) Matches(inv *Invoice) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range []string{inv.Number, inv.Client.Name, inv.Company.Name} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the invoices matching f, keeping their order.
func (f Filter) Apply(invoices []*Invoice) []*Invoice {
	out := make([]*Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if f.Matches(inv) {
			out = append(out, inv)
		}
	}
	return out
}

// NextNumber returns the number following the highest INV-NNNN number in
// invoices. Numbers in other formats are ignored.
func NextNumber(invoices []*Invoice) string {
	var highest int
	for _, inv := range invoices {
		var n int
		if _, err := fmt.Sscanf(inv.Number, numberPrefix+"%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%04d", numberPrefix, highest+1)
}

// Duplicate copies parties, items, tax rate and notes into a new draft dated
// now. The copy gets fresh ids and the given number.
func (inv *Invoice) Duplicate(now time.Time, number string) *Invoice {
	dup := New(now)
	dup.Number = number
	dup.Company = inv.Company
	dup.Client = inv.Client
	dup.TaxRate = inv.TaxRate
	dup.Notes = inv.Notes

	if term := inv.DueDate.Sub(inv.InvoiceDate); term > 0 {
		dup.DueDate = now.Add(term)
	}

	if inv.Items != nil {
		dup.Items = make([]Item, len(inv.Items))
		for i, item := range inv.Items {
			item.ID = uuid.New()
			dup.Items[i] = item
		}
	}
	dup.CalculateTotals()
	return dup
}
