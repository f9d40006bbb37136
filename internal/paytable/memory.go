package paytable

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps paytable rows in process memory for tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	byTenant map[string][]Entry
	defaults []Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byTenant: make(map[string][]Entry)}
}

func (r *MemoryRepository) ActiveEntries(_ context.Context, tenantID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entries, ok := r.byTenant[tenantID]; ok && len(entries) > 0 {
		out := make([]Entry, len(entries))
		copy(out, entries)
		return out, nil
	}
	out := make([]Entry, len(r.defaults))
	copy(out, r.defaults)
	return out, nil
}

func (r *MemoryRepository) ReplaceTable(_ context.Context, tenantID string, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.EntryID = uuid.NewString()
		tid := tenantID
		e.TenantID = &tid
		e.Active = true
		stored = append(stored, e)
	}
	r.byTenant[tenantID] = stored
	return nil
}

func (r *MemoryRepository) SeedDefault(_ context.Context, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.defaults) > 0 {
		return nil
	}
	stored := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.EntryID = uuid.NewString()
		e.TenantID = nil
		e.Active = true
		stored = append(stored, e)
	}
	r.defaults = stored
	return nil
}
