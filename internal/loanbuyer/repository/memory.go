package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"loandesk/backend/internal/loanbuyer/domain"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/apperr"
)

// MemoryRepository is an in-process Repository for tests and local runs. It also resolves
// ownership so it can back ownership.KindLoanBuyer.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.LoanBuyer
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]domain.LoanBuyer)}
}

func (m *MemoryRepository) Create(_ context.Context, b *domain.LoanBuyer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	b.ID, b.CreatedAt, b.UpdatedAt = m.nextID, now, now
	m.rows[b.ID] = *b
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.LoanBuyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryRepository) List(_ context.Context, owner string) ([]*domain.LoanBuyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.LoanBuyer
	for _, b := range m.rows {
		if owner != "" && b.Broker != owner && b.CreatedByNID != owner {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryRepository) Update(_ context.Context, id int64, p domain.Patch) (*domain.LoanBuyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&b.FirstName, p.FirstName)
	apply(&b.LastName, p.LastName)
	apply(&b.Phone, p.Phone)
	apply(&b.ProcessingStatus, p.ProcessingStatus)
	apply(&b.Notes, p.Notes)
	apply(&b.Broker, p.Broker)
	if p.LoanID != nil {
		v := *p.LoanID
		b.LoanID = &v
	}
	b.UpdatedAt = time.Now().UTC()
	m.rows[id] = b
	return &b, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

// ResolveOwner implements ownership.Resolver.
func (m *MemoryRepository) ResolveOwner(ctx context.Context, id string) ([]string, error) {
	n, err := ownership.ParseID(id)
	if err != nil {
		return nil, err
	}
	b, _ := m.GetByID(ctx, n)
	if b == nil {
		return nil, apperr.ErrNotFound
	}
	return b.Owners(), nil
}
