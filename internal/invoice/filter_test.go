package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Apply(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	draft := sampleInvoice(now)
	draft.Number = "INV-0001"

	paid := sampleInvoice(now)
	paid.Number = "INV-0002"
	paid.Client.Name = "Initech"
	paid.Status = StatusPaid

	all := []*Invoice{draft, paid}

	tests := []struct {
		name     string
		filter   Filter
		expected []*Invoice
	}{
		{name: "zero filter", filter: Filter{}, expected: all},
		{name: "status", filter: Filter{Status: StatusPaid}, expected: []*Invoice{paid}},
		{name: "number", filter: Filter{Query: "0001"}, expected: []*Invoice{draft}},
		{name: "client case-insensitive", filter: Filter{Query: "  iniTECH "}, expected: []*Invoice{paid}},
		{name: "company", filter: Filter{Query: "acme"}, expected: all},
		{name: "status and query", filter: Filter{Status: StatusDraft, Query: "initech"}, expected: []*Invoice{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Apply(all))
		})
	}
}

func TestNextNumber(t *testing.T) {
	tests := []struct {
		name     string
		numbers  []string
		expected string
	}{
		{name: "empty", numbers: nil, expected: "INV-0001"},
		{name: "highest wins", numbers: []string{"INV-0003", "INV-0010", "INV-0007"}, expected: "INV-0011"},
		{name: "foreign formats ignored", numbers: []string{"2026-17", "INV-0002"}, expected: "INV-0003"},
		{name: "past four digits", numbers: []string{"INV-9999"}, expected: "INV-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := make([]*Invoice, 0, len(tt.numbers))
			for _, n := range tt.numbers {
				inv := New(time.Now())
				inv.Number = n
				invoices = append(invoices, inv)
			}
			assert.Equal(t, tt.expected, NextNumber(invoices))
		})
	}
}

func TestDuplicate(t *testing.T) {
	issued := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	src := sampleInvoice(issued)
	src.DueDate = issued.AddDate(0, 0, 14)
	src.Status = StatusPaid
	src.Notes = "Thanks"
	src.CalculateTotals()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dup := src.Duplicate(now, "INV-0042")

	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "INV-0042", dup.Number)
	assert.Equal(t, StatusDraft, dup.Status)
	assert.True(t, now.Equal(dup.InvoiceDate))
	assert.True(t, now.AddDate(0, 0, 14).Equal(dup.DueDate))
	assert.Equal(t, src.Company, dup.Company)
	assert.Equal(t, src.Client, dup.Client)
	assert.Equal(t, "Thanks", dup.Notes)
	assert.Equal(t, src.TotalCents, dup.TotalCents)

	require.Len(t, dup.Items, len(src.Items))
	for i := range src.Items {
		assert.NotEqual(t, src.Items[i].ID, dup.Items[i].ID)
		assert.Equal(t, src.Items[i].Name, dup.Items[i].Name)
	}

	dup.Items[0].Name = "Changed"
	assert.Equal(t, "Design", src.Items[0].Name)
	require.NoError(t, dup.Validate())
}
