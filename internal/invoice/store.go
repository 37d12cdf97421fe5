package invoice

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

// Store persists invoices. Get returns a CodeNotFound error for unknown ids.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Put(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Invoice, error)
}

func notFound(id uuid.UUID) error {
	return errors.WithContext(
		errors.New(errors.CodeNotFound, "invoice not found"),
		"invoice_id", id.String(),
	)
}

// sortForListing orders newest invoices first, then by number.
func sortForListing(invoices []*Invoice) {
	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].InvoiceDate.Equal(invoices[j].InvoiceDate) {
			return invoices[i].InvoiceDate.After(invoices[j].InvoiceDate)
		}
		return invoices[i].Number < invoices[j].Number
	})
}

// MemoryStore keeps invoices in a map. It is used when no bucket is
// configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*Invoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[uuid.UUID]*Invoice),
	}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, notFound(id)
	}
	return inv.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, inv *Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return notFound(id)
	}
	delete(s.invoices, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Invoice, error) {
	s.mu.RLock()
	out := make([]*Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv.Clone())
	}
	s.mu.RUnlock()

	sortForListing(out)
	return out, nil
}
